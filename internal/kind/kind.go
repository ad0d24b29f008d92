// Package kind implements the named artifact-type registry (Kind) used to
// tag every Target. Kinds are bound to exactly one rank.Rank and form a
// subtype tree via an optional parent Kind, mirroring how the teacher's
// internal/registry.Registry keeps a flat map of named, pluggable
// components (there: providers; here: kinds) with alias-free, string-keyed
// lookup guarded by a single RWMutex.
package kind

import (
	"fmt"
	"sync"

	"github.com/oxhq/pipecore/internal/rank"
)

// Kind is a named artifact type bound to a Rank, optionally descending
// from a parent Kind for the subtype matching used by Contracts.
type Kind struct {
	name   string
	rank   *rank.Rank
	parent *Kind
}

// Name returns the Kind's registered name.
func (k *Kind) Name() string { return k.name }

// Rank returns the Rank this Kind is bound to.
func (k *Kind) Rank() *rank.Rank { return k.rank }

// Parent returns the Kind's parent in the subtype tree, or nil.
func (k *Kind) Parent() *Kind { return k.parent }

// Matches reports whether k matches other: true iff k == other or k
// descends from other through the parent chain.
func (k *Kind) Matches(other *Kind) bool {
	if other == nil {
		return false
	}
	for cur := k; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Registry is the central, string-keyed Kind registry.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]*Kind
}

// NewRegistry creates an empty Kind registry.
func NewRegistry() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// Register adds a new Kind named name, bound to r, with an optional parent
// Kind (by name; empty string means no parent). Registering a Kind whose
// Rank hasn't been registered is a caller bug and is asserted against by
// requiring a non-nil *rank.Rank up front.
func (reg *Registry) Register(name string, r *rank.Rank, parentName string) (*Kind, error) {
	if name == "" {
		return nil, fmt.Errorf("kind name must not be empty")
	}
	if r == nil {
		return nil, fmt.Errorf("kind %q: rank must be registered first", name)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.kinds[name]; exists {
		return nil, fmt.Errorf("kind %q already registered", name)
	}

	var parent *Kind
	if parentName != "" {
		p, ok := reg.kinds[parentName]
		if !ok {
			return nil, fmt.Errorf("kind %q: parent kind %q not registered", name, parentName)
		}
		parent = p
	}

	k := &Kind{name: name, rank: r, parent: parent}
	reg.kinds[name] = k
	return k, nil
}

// Get looks up a registered Kind by name.
func (reg *Registry) Get(name string) (*Kind, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	k, ok := reg.kinds[name]
	return k, ok
}

// MustGet looks up a Kind by name, returning an UnknownKind-flavored error
// (via the caller's own error wrapping) when absent. It is a convenience
// for callers that already know the name must resolve.
func (reg *Registry) MustGet(name string) (*Kind, error) {
	k, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", name)
	}
	return k, nil
}

// Descendants returns every registered Kind that Matches k (including k
// itself), useful when a Contract rule's input pattern names the most
// general Kind in a family and the planner must consider every concrete
// subtype currently registered.
func (reg *Registry) Descendants(k *Kind) []*Kind {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	var out []*Kind
	for _, candidate := range reg.kinds {
		if candidate.Matches(k) {
			out = append(out, candidate)
		}
	}
	return out
}
