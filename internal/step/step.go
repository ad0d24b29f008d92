// Package step implements the ordered group of Pipes sharing a
// ContainerSet snapshot (spec §3 "Step", §4.4). Steps are themselves
// ordered globally by the Runner; within a Step, Pipes run in declared
// order with no reordering even if the dependency graph would allow it
// (§5).
package step

import (
	"context"
	"fmt"
	"log"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/contract"
	"github.com/oxhq/pipecore/internal/pipe"
	"github.com/oxhq/pipecore/internal/pipectx"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/target"
)

// Schema declares a Step's ContainerSet shape: container name -> the
// registered Container type that name must hold.
type Schema map[string]string

// Step is a named, ordered group of Pipes sharing a ContainerSet.
type Step struct {
	Name      string
	Schema    Schema
	Pipes     []pipe.Pipe
	// Release downgrades PipeContractViolation from fatal to a logged
	// warning (§7 "downgradable to warnings in release").
	Release bool
}

// EffectiveContract returns p's Contract, honoring EnabledWhen gating
// (§4.4): a gated-out Pipe contributes an empty Contract to planning.
func EffectiveContract(p pipe.Pipe, active map[string]bool) *contract.Contract {
	if g, ok := p.(*pipe.Gated); ok {
		return g.EffectiveContract(active)
	}
	return p.Contract()
}

func enabled(p pipe.Pipe, active map[string]bool) bool {
	if g, ok := p.(*pipe.Gated); ok {
		return g.Enabled(active)
	}
	return true
}

// Execute runs every Pipe in declared order against containers, which must
// already hold this Step's input snapshot. Cancellation of runCtx is
// checked between Pipes, never inside one (§5 "Cancellation"). On the
// first Pipe error, execution stops and the error is returned wrapped as
// PipeFailed; outputs of Pipes that already finished remain in containers
// for inspection (§4.4, §7 "Partial failure").
func (s *Step) Execute(runCtx context.Context, ctx *pipectx.Context, containers *container.Set, active map[string]bool) error {
	for _, p := range s.Pipes {
		select {
		case <-runCtx.Done():
			return pipelineerr.Wrap(pipelineerr.Cancelled, fmt.Sprintf("step %q", s.Name), runCtx.Err())
		default:
		}

		if !enabled(p, active) {
			continue
		}

		snapshot := inputSnapshot(p, containers)

		if err := p.Execute(ctx, containers); err != nil {
			return pipelineerr.Wrap(pipelineerr.PipeFailed, fmt.Sprintf("pipe %q in step %q", p.Name(), s.Name), err)
		}

		if err := s.checkPostcondition(p, snapshot, containers); err != nil {
			if s.Release {
				log.Printf("warning: %v", err)
				continue
			}
			return err
		}
	}
	return nil
}

func inputSnapshot(p pipe.Pipe, containers *container.Set) contract.ByContainer {
	snap := contract.ByContainer{}
	for _, name := range p.UsedContainers() {
		c, ok := containers.Get(name)
		if !ok {
			continue
		}
		snap[name] = c.Enumerate()
	}
	return snap
}

// checkPostcondition asserts a Pipe honored its own Contract: every Target
// its declared postcondition predicts from its pre-execution inputs is
// present afterward (§4.4, §8 property 2's execution-time counterpart).
func (s *Step) checkPostcondition(p pipe.Pipe, before contract.ByContainer, containers *container.Set) error {
	predicted, err := p.Contract().DeducePostcondition(before)
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.InvalidContract, fmt.Sprintf("pipe %q postcondition", p.Name()), err)
	}

	for containerName, wanted := range predicted {
		c, ok := containers.Get(containerName)
		if !ok {
			return pipelineerr.New(pipelineerr.ContainerTypeMismatch, fmt.Sprintf(
				"pipe %q declared output container %q not present in step %q", p.Name(), containerName, s.Name,
			))
		}
		for _, t := range wanted.Slice() {
			if !t.Concrete() {
				continue
			}
			if !c.Contains(t) {
				return pipelineerr.New(pipelineerr.PipeContractViolation, fmt.Sprintf(
					"pipe %q in step %q: declared output %s missing from container %q after execution",
					p.Name(), s.Name, t, containerName,
				))
			}
		}
	}
	return nil
}

// DeclaredOutputs returns the union, over every Pipe in s, of the output
// Targets the Step's Contracts predict from containers' current contents.
func (s *Step) DeclaredOutputs(active map[string]bool, containers *container.Set) (contract.ByContainer, error) {
	out := contract.ByContainer{}
	for _, p := range s.Pipes {
		if !enabled(p, active) {
			continue
		}
		in := inputSnapshot(p, containers)
		predicted, err := EffectiveContract(p, active).DeducePostcondition(in)
		if err != nil {
			return nil, err
		}
		for name, ts := range predicted {
			if out[name] == nil {
				out[name] = target.NewSet()
			}
			out[name] = out[name].Union(ts)
		}
	}
	return out, nil
}
