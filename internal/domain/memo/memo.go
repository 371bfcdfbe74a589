// Package memo holds computed results keyed by their deterministic inputs.
package memo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache stores values by key.
type Cache[V any] interface {
	// Get returns the value for key if present and not expired.
	Get(ctx context.Context, key string) (V, bool)

	// Put stores value under key, evicting the least recently used entry
	// when full.
	Put(ctx context.Context, key string, value V)

	// Purge drops every entry.
	Purge(ctx context.Context)

	Size() int64
}

// node represents a single entry in the linked list
type node[V any] struct {
	key     string
	value   V
	expires time.Time
	next    *node[V]
}

func (n *node[V]) reset() {
	var zero V
	n.key = ""
	n.value = zero
	n.expires = time.Time{}
	n.next = nil
}

// inMemoryCache keeps entries in a singly linked list with the most recently
// used entry at head. Get and Put move an entry to the head; when full, the
// tail (least recently used) is evicted. maxSize <= 0 means unbounded.
type inMemoryCache[V any] struct {
	mu       sync.Mutex
	entries  map[string]*node[V]
	head     *node[V]
	maxSize  int
	ttl      time.Duration
	now      func() time.Time
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemory creates an in-memory cache.
func NewInMemory[V any](opts ...Option) Cache[V] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	c := &inMemoryCache[V]{
		entries: make(map[string]*node[V]),
		maxSize: s.maxSize,
		ttl:     s.ttl,
		now:     s.clock,
	}
	c.nodePool = sync.Pool{
		New: func() interface{} {
			return &node[V]{}
		},
	}
	return c
}

func (c *inMemoryCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	n, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !n.expires.IsZero() && !c.now().Before(n.expires) {
		c.remove(n)
		return zero, false
	}
	c.promote(n)
	return n.value, true
}

// promote moves n to the head. Must be called with c.mu held.
func (c *inMemoryCache[V]) promote(n *node[V]) {
	if c.head == n {
		return
	}
	prev := c.head
	for prev != nil && prev.next != n {
		prev = prev.next
	}
	if prev == nil {
		return
	}
	prev.next = n.next
	n.next = c.head
	c.head = n
}

func (c *inMemoryCache[V]) Put(_ context.Context, key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	n := c.nodePool.Get().(*node[V])
	n.key = key
	n.value = value
	if c.ttl > 0 {
		n.expires = c.now().Add(c.ttl)
	}
	n.next = c.head
	c.head = n
	c.entries[key] = n
	c.size.Add(1)
}

func (c *inMemoryCache[V]) Purge(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := c.head; n != nil; {
		next := n.next
		n.reset()
		c.nodePool.Put(n)
		n = next
	}
	c.head = nil
	c.entries = make(map[string]*node[V])
	c.size.Store(0)
}

// remove unlinks n. Must be called with c.mu held.
func (c *inMemoryCache[V]) remove(n *node[V]) {
	delete(c.entries, n.key)
	if c.head == n {
		c.head = n.next
	} else {
		cur := c.head
		for cur != nil && cur.next != n {
			cur = cur.next
		}
		if cur != nil {
			cur.next = n.next
		}
	}
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

// evictOldest removes the tail, the least recently used entry. Must be called with c.mu held.
func (c *inMemoryCache[V]) evictOldest() {
	if c.head == nil {
		return
	}
	if c.head.next == nil {
		c.remove(c.head)
		return
	}
	prev := c.head
	for prev.next.next != nil {
		prev = prev.next
	}
	c.remove(prev.next)
}

func (c *inMemoryCache[V]) Size() int64 {
	return c.size.Load()
}

// Nop returns a cache that never stores anything.
func Nop[V any]() Cache[V] {
	return nopCache[V]{}
}

type nopCache[V any] struct{}

func (nopCache[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}
func (nopCache[V]) Put(context.Context, string, V) {}
func (nopCache[V]) Purge(context.Context)          {}
func (nopCache[V]) Size() int64                    { return 0 }
