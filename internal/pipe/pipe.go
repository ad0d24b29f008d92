// Package pipe implements the opaque unit of work: a Contract plus an
// execute operation, optionally gated by runtime flags (spec §4.4). Pipes
// are pure with respect to external state except for Globals, which they
// declare reading by name for the Invalidator's dependency model (§4.6).
package pipe

import (
	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/contract"
	"github.com/oxhq/pipecore/internal/pipectx"
)

// Pipe is an opaque execution unit bound to a Contract.
type Pipe interface {
	// Name is the registered Pipe type name (e.g. "Lift", "ImportBinary").
	Name() string

	// UsedContainers lists, in order, the container names this Pipe reads
	// or writes within its Step's ContainerSet.
	UsedContainers() []string

	// Contract returns this Pipe's declarative input->output rewrite
	// rule, used by the planner (backward pass) and by debug-mode
	// postcondition checking (forward pass).
	Contract() *contract.Contract

	// ReadsGlobals names the Globals this Pipe reads, for the
	// Invalidator's Global dependency model.
	ReadsGlobals() []string

	// Execute runs the Pipe against its owned containers, mutating them
	// in place. ctx provides Global access.
	Execute(ctx *pipectx.Context, containers *container.Set) error
}

// Gated wraps a Pipe with a set of required flags (EnabledWhen, §4.4): the
// Pipe only runs, and only contributes to planning, when every required
// flag is active in the runtime's flag set.
type Gated struct {
	Inner         Pipe
	RequiredFlags []string
}

func (g *Gated) Name() string             { return g.Inner.Name() }
func (g *Gated) UsedContainers() []string { return g.Inner.UsedContainers() }
func (g *Gated) ReadsGlobals() []string   { return g.Inner.ReadsGlobals() }

// Enabled reports whether every RequiredFlag is present in active.
func (g *Gated) Enabled(active map[string]bool) bool {
	for _, f := range g.RequiredFlags {
		if !active[f] {
			return false
		}
	}
	return true
}

// EffectiveContract returns the Inner Pipe's Contract when Enabled(active),
// or an empty Contract otherwise — "the planner treats it as having an
// empty Contract" (§4.4).
func (g *Gated) EffectiveContract(active map[string]bool) *contract.Contract {
	if !g.Enabled(active) {
		return contract.Empty()
	}
	return g.Inner.Contract()
}

func (g *Gated) Contract() *contract.Contract { return g.Inner.Contract() }

func (g *Gated) Execute(ctx *pipectx.Context, containers *container.Set) error {
	return g.Inner.Execute(ctx, containers)
}
