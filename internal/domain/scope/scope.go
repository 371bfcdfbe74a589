// Package scope resolves which deal owners a caller may see. Every downstream
// component consumes the resulting Scope; none re-derives visibility.
package scope

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/verdict/internal/domain/model"
)

// Scope is either unrestricted or a set of owner ids and normalized owner
// name keys. A deal is visible when it matches either set. A resolved scope
// also remembers its root: the caller's own id and name keys.
type Scope struct {
	unrestricted bool
	ownerIDs     map[string]struct{}
	nameKeys     map[string]struct{}
	rootIDs      map[string]struct{}
	rootNames    map[string]struct{}

	// strictNames limits name keys to deals that carry no owner id.
	strictNames bool
}

// Unrestricted returns the company-wide scope.
func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

// NewOwnerSet returns a restricted scope over ids and names. Blank entries are
// ignored; names are normalized with NormalizeName.
func NewOwnerSet(ids, names []string) Scope {
	s := Scope{
		ownerIDs: make(map[string]struct{}, len(ids)),
		nameKeys: make(map[string]struct{}, len(names)),
	}
	for _, id := range ids {
		s.addID(id)
	}
	for _, n := range names {
		s.addName(n)
	}
	return s
}

func (s *Scope) addID(id string) {
	if id = strings.TrimSpace(id); id != "" {
		s.ownerIDs[id] = struct{}{}
	}
}

func (s *Scope) addName(name string) {
	if k := NormalizeName(name); k != "" {
		s.nameKeys[k] = struct{}{}
	}
}

// addRoot records id and names as the scope's root and adds them to the owner
// sets.
func (s *Scope) addRoot(id string, names ...string) {
	if s.rootIDs == nil {
		s.rootIDs = make(map[string]struct{}, 1)
		s.rootNames = make(map[string]struct{}, len(names))
	}
	if id = strings.TrimSpace(id); id != "" {
		s.rootIDs[id] = struct{}{}
		s.ownerIDs[id] = struct{}{}
	}
	for _, n := range names {
		if k := NormalizeName(n); k != "" {
			s.rootNames[k] = struct{}{}
			s.nameKeys[k] = struct{}{}
		}
	}
}

// NormalizeName trims, collapses inner whitespace and lowercases name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// IsUnrestricted reports whether the scope applies no owner filter.
func (s Scope) IsUnrestricted() bool {
	return s.unrestricted
}

// Empty reports whether a restricted scope has no keys at all. Callers must
// treat an empty scope as "sees nothing".
func (s Scope) Empty() bool {
	return !s.unrestricted && len(s.ownerIDs) == 0 && len(s.nameKeys) == 0
}

// MatchesOwner reports whether an owner id or owner name is visible.
func (s Scope) MatchesOwner(id, name string) bool {
	if s.unrestricted {
		return true
	}
	id = strings.TrimSpace(id)
	if id != "" {
		if _, ok := s.ownerIDs[id]; ok {
			return true
		}
		if s.strictNames {
			return false
		}
	}
	return hasName(s.nameKeys, name)
}

// MatchesRef reports whether ref, a quota owner_ref holding either an owner
// id or an owner name, is in the scope.
func (s Scope) MatchesRef(ref string) bool {
	if s.unrestricted {
		return true
	}
	return hasID(s.ownerIDs, ref) || hasName(s.nameKeys, ref)
}

// MatchesRoot reports whether ref names the scope's root owner. A scope
// without a root treats its whole owner set as the root.
func (s Scope) MatchesRoot(ref string) bool {
	if s.unrestricted {
		return true
	}
	if len(s.rootIDs) == 0 && len(s.rootNames) == 0 {
		return s.MatchesRef(ref)
	}
	return hasID(s.rootIDs, ref) || hasName(s.rootNames, ref)
}

func hasID(set map[string]struct{}, id string) bool {
	if id = strings.TrimSpace(id); id == "" {
		return false
	}
	_, ok := set[id]
	return ok
}

func hasName(set map[string]struct{}, name string) bool {
	k := NormalizeName(name)
	if k == "" {
		return false
	}
	_, ok := set[k]
	return ok
}

// Contains reports whether d is visible in the scope.
func (s Scope) Contains(d *model.Deal) bool {
	return s.MatchesOwner(d.OwnerID, d.OwnerName)
}

// Filter returns the deals visible in the scope. An empty scope returns nil.
func (s Scope) Filter(deals []model.Deal) []model.Deal {
	if s.unrestricted {
		return deals
	}
	if s.Empty() {
		return nil
	}
	out := make([]model.Deal, 0, len(deals))
	for i := range deals {
		if s.Contains(&deals[i]) {
			out = append(out, deals[i])
		}
	}
	return out
}

// OwnerIDs returns the owner id keys in sorted order.
func (s Scope) OwnerIDs() []string {
	return sortedKeys(s.ownerIDs)
}

// NameKeys returns the normalized name keys in sorted order.
func (s Scope) NameKeys() []string {
	return sortedKeys(s.nameKeys)
}

// Narrow returns the single-rep scope for rep if rep is visible in s, and
// the empty scope otherwise. Narrowing never widens. The rep's name only
// claims deals with no owner id, and is left out entirely when byName is
// false.
func (s Scope) Narrow(rep model.Rep, byName bool) Scope {
	if !s.MatchesOwner(rep.ID, rep.Name) {
		return NewOwnerSet(nil, nil)
	}
	var names []string
	if byName {
		names = []string{rep.Name}
	}
	n := NewOwnerSet(nil, nil)
	n.addRoot(rep.ID, names...)
	n.strictNames = true
	return n
}

// Fingerprint is a stable hash of the scope suitable for cache keys.
func (s Scope) Fingerprint() uint64 {
	if s.unrestricted {
		return xxhash.Sum64String("*")
	}
	d := xxhash.New()
	for _, id := range s.OwnerIDs() {
		_, _ = d.WriteString("i:")
		_, _ = d.WriteString(id)
		_, _ = d.WriteString("\x00")
	}
	for _, k := range s.NameKeys() {
		_, _ = d.WriteString("n:")
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
	}
	for _, id := range sortedKeys(s.rootIDs) {
		_, _ = d.WriteString("ri:")
		_, _ = d.WriteString(id)
		_, _ = d.WriteString("\x00")
	}
	for _, k := range sortedKeys(s.rootNames) {
		_, _ = d.WriteString("rn:")
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
	}
	if s.strictNames {
		_, _ = d.WriteString("strict")
	}
	return d.Sum64()
}

// Summary is the serializable view of a scope.
type Summary struct {
	Unrestricted bool     `json:"unrestricted"`
	OwnerIDs     []string `json:"owner_ids,omitempty"`
	NameKeys     []string `json:"name_keys,omitempty"`
}

// Summary returns the serializable view of s.
func (s Scope) Summary() Summary {
	return Summary{Unrestricted: s.unrestricted, OwnerIDs: s.OwnerIDs(), NameKeys: s.NameKeys()}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
