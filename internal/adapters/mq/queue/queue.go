// Package queue holds rollup jobs between the scheduler that produces them
// and the worker pool that runs them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/verdict/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Job asks for one org's daily rollup to be rebuilt.
type Job struct {
	OrgID string
	Day   time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job without blocking.
	Enqueue(ctx context.Context, j Job) error

	// Dequeue returns a channel receiving jobs until the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of waiting jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Waiting jobs are still delivered.
	Close() error

	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return err
	}

	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs))
		return nil
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-q.jobs:
				if !ok {
					return
				}
				select {
				case out <- j:
					metrics.UpdateQueueSize(len(q.jobs))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of waiting jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
