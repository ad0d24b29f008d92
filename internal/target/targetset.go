package target

import "github.com/oxhq/pipecore/internal/kind"

// Set is a collection of Targets keyed by their String() form for O(1)
// membership tests. When used to mirror a Container's contents every
// member is concrete, because Container.Put rejects wildcarded Targets
// before they ever reach a Set (see internal/container). When used as a
// goal, or as a Contract's deduced precondition/postcondition, a Set may
// also hold wildcarded Targets, per §4.2: "Wildcarded Targets are
// supported in requests and contract specifications."
type Set struct {
	items map[string]Target
}

// NewSet builds a Set from zero or more Targets.
func NewSet(ts ...Target) *Set {
	s := &Set{items: make(map[string]Target, len(ts))}
	for _, t := range ts {
		s.Add(t)
	}
	return s
}

// Add inserts a Target, concrete or wildcarded.
func (s *Set) Add(t Target) {
	s.items[t.String()] = t
}

// Remove deletes t from the set if present.
func (s *Set) Remove(t Target) {
	delete(s.items, t.String())
}

// Contains reports whether t, concrete or wildcarded, is a member of the
// set (matched by its String() form, with no wildcard expansion).
func (s *Set) Contains(t Target) bool {
	_, ok := s.items[t.String()]
	return ok
}

// Len returns the number of Targets in the set.
func (s *Set) Len() int { return len(s.items) }

// Slice returns a sorted snapshot of the set's contents.
func (s *Set) Slice() []Target {
	out := make([]Target, 0, len(s.items))
	for _, t := range s.items {
		out = append(out, t)
	}
	return SortTargets(out)
}

// Union returns a new Set containing every Target in s or other.
func (s *Set) Union(other *Set) *Set {
	out := NewSet()
	for _, t := range s.items {
		out.Add(t)
	}
	if other != nil {
		for _, t := range other.items {
			out.Add(t)
		}
	}
	return out
}

// Difference returns a new Set containing Targets in s but not in other.
func (s *Set) Difference(other *Set) *Set {
	out := NewSet()
	for _, t := range s.items {
		if other == nil || !other.Contains(t) {
			out.Add(t)
		}
	}
	return out
}

// Intersection returns a new Set containing Targets present in both s and
// other.
func (s *Set) Intersection(other *Set) *Set {
	out := NewSet()
	if other == nil {
		return out
	}
	for _, t := range s.items {
		if other.Contains(t) {
			out.Add(t)
		}
	}
	return out
}

// Expand returns the subset of present (a Set of concrete Targets, e.g. a
// Container's current contents) that satisfy the pattern (k, pathPattern).
// This is the mechanism backing wildcard requests: Expand(StringKind, [*])
// against a Container's present Targets returns exactly the concrete
// Targets of Kind StringKind it holds.
func Expand(present *Set, k *kind.Kind, pathPattern []string) *Set {
	out := NewSet()
	if present == nil {
		return out
	}
	for _, t := range present.items {
		if t.Satisfies(k, pathPattern) {
			out.Add(t)
		}
	}
	return out
}
