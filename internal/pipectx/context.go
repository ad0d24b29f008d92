// Package pipectx implements the Context: the process-wide, explicitly
// passed owner of Globals and of the Kind/Rank registries (spec §3
// "Context", design note "Global mutable state"); Container and Pipe type
// registries live in package pregistry, not here. A
// Context is created once per run and outlives every Runner built against
// it.
package pipectx

import (
	"fmt"
	"sync"

	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/rank"
)

// Global is a named, serializable process-wide value (e.g. the recovered
// program model). Serialize produces its byte form. The interface has no
// Deserialize counterpart, and nothing in this package writes Globals to
// the persistence store.
type Global interface {
	Serialize() ([]byte, error)
}

// Listener is invoked whenever a Global is mutated, naming it so the
// Invalidator can compute the initial stale set (§4.6).
type Listener func(name string)

// Context owns Globals plus the Kind and Rank registries for a single run.
type Context struct {
	mu      sync.RWMutex
	globals map[string]Global

	listeners []Listener

	Kinds *kind.Registry
	Ranks *rank.Registry
}

// New creates an empty Context backed by the given Kind/Rank registries.
func New(kinds *kind.Registry, ranks *rank.Registry) *Context {
	return &Context{
		globals: make(map[string]Global),
		Kinds:   kinds,
		Ranks:   ranks,
	}
}

// RegisterGlobal installs the initial value for a named Global. It is an
// error to register the same name twice.
func (c *Context) RegisterGlobal(name string, value Global) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.globals[name]; exists {
		return fmt.Errorf("global %q already registered", name)
	}
	c.globals[name] = value
	return nil
}

// Get fetches a Global by name, returning ok=false if not registered.
func (c *Context) Get(name string) (Global, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.globals[name]
	return g, ok
}

// GetTyped fetches a Global by name and asserts its concrete type,
// returning an error if the name is unregistered or the type does not
// match (the design note's "NotFound" behavior).
func GetTyped[T Global](c *Context, name string) (T, error) {
	var zero T
	g, ok := c.Get(name)
	if !ok {
		return zero, fmt.Errorf("global %q: not found", name)
	}
	typed, ok := g.(T)
	if !ok {
		return zero, fmt.Errorf("global %q: registered type does not match requested type", name)
	}
	return typed, nil
}

// Mutate replaces the value of a registered Global and notifies every
// listener that name changed - the principal invalidation trigger (§3,
// §4.6). Mutation is only valid between Pipe executions (§5); the caller
// is responsible for that ordering guarantee.
func (c *Context) Mutate(name string, value Global) error {
	c.mu.Lock()
	if _, exists := c.globals[name]; !exists {
		c.mu.Unlock()
		return fmt.Errorf("global %q: cannot mutate before it is registered", name)
	}
	c.globals[name] = value
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(name)
	}
	return nil
}

// OnMutate registers a listener invoked on every future Mutate call.
func (c *Context) OnMutate(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// GlobalNames returns the names of every registered Global.
func (c *Context) GlobalNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.globals))
	for n := range c.globals {
		out = append(out, n)
	}
	return out
}
