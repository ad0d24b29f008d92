// Package invalidator computes and applies transitive invalidation when a
// Global mutates or a caller explicitly invalidates a Target set (spec
// §4.6). It never re-runs Pipes; it only removes stale Targets from the
// Containers that hold them.
package invalidator

import (
	"fmt"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/contract"
	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/step"
	"github.com/oxhq/pipecore/internal/target"
)

// Invalidator holds the globally ordered Steps it propagates staleness
// across, in the same declared order the Runner executes them.
type Invalidator struct {
	steps []*step.Step
	index map[string]int
}

// New builds an Invalidator over steps, in declared order.
func New(steps []*step.Step) (*Invalidator, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, exists := index[s.Name]; exists {
			return nil, fmt.Errorf("duplicate step name %q", s.Name)
		}
		index[s.Name] = i
	}
	return &Invalidator{steps: steps, index: index}, nil
}

// GlobalSeed computes the initial stale set from mutating globalName: every
// output Target of every Pipe that declares reading it, in every Step
// (§4.6 "Global dependency model"). Output Targets are necessarily
// wildcarded here since no concrete invocation is being examined, only
// the Contract's own output pattern.
func (inv *Invalidator) GlobalSeed(globalName string, active map[string]bool) (map[string]contract.ByContainer, error) {
	seed := make(map[string]contract.ByContainer, len(inv.steps))
	for _, s := range inv.steps {
		byContainer := contract.ByContainer{}
		for _, p := range s.Pipes {
			if !readsGlobal(p.ReadsGlobals(), globalName) {
				continue
			}
			eff := step.EffectiveContract(p, active)
			for _, rule := range eff.Rules {
				wc, err := wildcardOf(rule.OutputKind)
				if err != nil {
					return nil, err
				}
				if byContainer[rule.OutputContainer] == nil {
					byContainer[rule.OutputContainer] = target.NewSet()
				}
				byContainer[rule.OutputContainer].Add(wc)
			}
		}
		if len(byContainer) > 0 {
			seed[s.Name] = byContainer
		}
	}
	return seed, nil
}

func readsGlobal(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func wildcardOf(k *kind.Kind) (target.Target, error) {
	path := make([]string, k.Rank().Depth())
	for i := range path {
		path[i] = target.Wildcard
	}
	return target.New(k, path)
}

// Closure computes the transitive stale set forward from seed: for each
// Step in declared order, each Pipe's declared postcondition over the
// portion of its reads already known stale is unioned into the running
// stale set, which then carries forward to the next Step by container
// name equality (§4.6 "Transitive closure").
func (inv *Invalidator) Closure(seed map[string]contract.ByContainer, active map[string]bool) (map[string]contract.ByContainer, error) {
	result := make(map[string]contract.ByContainer, len(inv.steps))
	var carry contract.ByContainer
	for _, s := range inv.steps {
		entry := contract.UnionByContainer(seed[s.Name], carry)
		for _, p := range s.Pipes {
			eff := step.EffectiveContract(p, active)
			staleInputs := eff.FilterInputs(entry)
			if len(staleInputs) == 0 {
				continue
			}
			produced, err := eff.DeducePostcondition(staleInputs)
			if err != nil {
				return nil, err
			}
			entry = contract.UnionByContainer(entry, produced)
		}
		result[s.Name] = entry
		carry = entry
	}
	return result, nil
}

// Apply removes every stale Target named in stale from the corresponding
// Container in containersByStep, expanding wildcarded entries against
// each Container's present contents first (§4.6 "Application": "Containers
// are responsible for actually discarding bytes; the Invalidator only
// issues the command").
func Apply(stale map[string]contract.ByContainer, containersByStep map[string]*container.Set) {
	for stepName, byContainer := range stale {
		cs, ok := containersByStep[stepName]
		if !ok {
			continue
		}
		for containerName, staleSet := range byContainer {
			c, ok := cs.Get(containerName)
			if !ok {
				continue
			}
			present := c.Enumerate()
			toRemove := target.NewSet()
			for _, t := range staleSet.Slice() {
				if t.Concrete() {
					toRemove.Add(t)
					continue
				}
				for _, m := range target.Expand(present, t.Kind, t.Path).Slice() {
					toRemove.Add(m)
				}
			}
			c.Remove(toRemove)
		}
	}
}

// Global runs the full pipeline for trigger (a): seed from globalName,
// compute the closure, and apply it to containersByStep.
func (inv *Invalidator) Global(globalName string, active map[string]bool, containersByStep map[string]*container.Set) (map[string]contract.ByContainer, error) {
	seed, err := inv.GlobalSeed(globalName, active)
	if err != nil {
		return nil, err
	}
	stale, err := inv.Closure(seed, active)
	if err != nil {
		return nil, err
	}
	Apply(stale, containersByStep)
	return stale, nil
}

// Targets runs the full pipeline for trigger (b): explicit invalidation of
// a concrete TargetSet x in (stepName, containerName).
func (inv *Invalidator) Targets(stepName, containerName string, x *target.Set, active map[string]bool, containersByStep map[string]*container.Set) (map[string]contract.ByContainer, error) {
	if _, ok := inv.index[stepName]; !ok {
		return nil, pipelineerr.New(pipelineerr.UnknownStep, fmt.Sprintf("unknown step %q", stepName))
	}
	seed := map[string]contract.ByContainer{
		stepName: {containerName: x},
	}
	stale, err := inv.Closure(seed, active)
	if err != nil {
		return nil, err
	}
	Apply(stale, containersByStep)
	return stale, nil
}
