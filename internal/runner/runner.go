// Package runner implements the planner and executor for a sequence of
// Steps (spec §4.5 "Runner"). Given a goal — a set of (step, container,
// Target) triples the caller wants materialized — the Runner first walks
// Steps backward to derive what must already be present when the first
// involved Step begins, then walks forward executing Pipes and copying
// ContainerSets across Step boundaries.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/contract"
	"github.com/oxhq/pipecore/internal/pipectx"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/step"
	"github.com/oxhq/pipecore/internal/target"
)

// Goal names a Target set the caller wants materialized in a named
// container at a named Step, mirroring the CLI's positional
// `step:container:path:Kind` goal arguments (§6).
type Goal struct {
	Step      string
	Container string
	Targets   *target.Set
}

// Runner holds the globally ordered Steps of one pipeline run.
type Runner struct {
	steps   []*step.Step
	index   map[string]int
	release bool
}

// Option configures a Runner at construction.
type Option func(*Runner)

// WithRelease downgrades PipeContractViolation from fatal to a logged
// warning across every Step (§7 "downgradable to warnings in release").
func WithRelease(release bool) Option {
	return func(r *Runner) { r.release = release }
}

// New builds a Runner over steps, in declared order. Step names must be
// unique.
func New(steps []*step.Step, opts ...Option) (*Runner, error) {
	if len(steps) == 0 {
		return nil, pipelineerr.New(pipelineerr.UnknownStep, "runner requires at least one step")
	}
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, exists := index[s.Name]; exists {
			return nil, fmt.Errorf("duplicate step name %q", s.Name)
		}
		index[s.Name] = i
	}
	r := &Runner{steps: steps, index: index}
	for _, opt := range opts {
		opt(r)
	}
	for _, s := range r.steps {
		s.Release = r.release
	}
	return r, nil
}

func (r *Runner) stepIndex(name string) (int, error) {
	i, ok := r.index[name]
	if !ok {
		return 0, pipelineerr.New(pipelineerr.UnknownStep, fmt.Sprintf("unknown step %q", name))
	}
	return i, nil
}

// Plan computes, for every Step from the first involved one through the
// highest-indexed goal Step, the TargetSet that must already be present
// at that Step's entry (spec §4.5 "Planning"). bound names the container
// names the caller supplies externally at Step 0 (the CLI's `-i`
// bindings); entries of needAtEntry[0] outside bound fail the goal with
// UnsatisfiableGoal, naming the missing Targets.
func (r *Runner) Plan(goal []Goal, bound map[string]bool, active map[string]bool) ([]contract.ByContainer, error) {
	if len(goal) == 0 {
		return nil, pipelineerr.New(pipelineerr.UnsatisfiableGoal, "goal is empty")
	}

	maxIdx := -1
	pending := make([]contract.ByContainer, len(r.steps))
	for i := range pending {
		pending[i] = contract.ByContainer{}
	}
	for _, g := range goal {
		idx, err := r.stepIndex(g.Step)
		if err != nil {
			return nil, err
		}
		if idx > maxIdx {
			maxIdx = idx
		}
		if pending[idx][g.Container] == nil {
			pending[idx][g.Container] = target.NewSet()
		}
		pending[idx][g.Container] = pending[idx][g.Container].Union(g.Targets)
	}

	needAtEntry := make([]contract.ByContainer, maxIdx+1)
	var carry contract.ByContainer
	for i := maxIdx; i >= 0; i-- {
		current := contract.UnionByContainer(pending[i], carry)

		s := r.steps[i]
		for pi := len(s.Pipes) - 1; pi >= 0; pi-- {
			p := s.Pipes[pi]
			eff := step.EffectiveContract(p, active)
			explained, unexplained := eff.Partition(current)
			if len(explained) == 0 {
				continue
			}
			inNeed, err := eff.DeducePrecondition(explained)
			if err != nil {
				return nil, err
			}
			current = contract.UnionByContainer(unexplained, inNeed)
		}

		needAtEntry[i] = current
		carry = current
	}

	if missing := unsatisfied(needAtEntry[0], bound); len(missing) > 0 {
		return nil, pipelineerr.New(pipelineerr.UnsatisfiableGoal, fmt.Sprintf(
			"missing inputs at step %q: %s", r.steps[0].Name, strings.Join(missing, ", "),
		))
	}

	return needAtEntry, nil
}

// unsatisfied returns a description of every entry in need whose
// container is not in bound. Every entry of a bound container, wildcard or
// concrete, is trusted (the caller vouches the container holds whatever it
// holds; the Runner cannot check file contents at plan time); each entry
// of an unbound container is named individually.
func unsatisfied(need contract.ByContainer, bound map[string]bool) []string {
	var missing []string
	for name, ts := range need {
		if bound[name] {
			continue
		}
		for _, t := range ts.Slice() {
			missing = append(missing, fmt.Sprintf("%s:%s", name, t))
		}
	}
	return missing
}

// Execute runs every Step from index 0 through the highest Step named in
// goal, in declared order, copying each Step's ContainerSet into the next
// before it runs (§4.5 "Execution", §5 "Containers are not shared across
// Steps in place"). initial is Step 0's entry ContainerSet, already
// populated with whatever the caller bound externally. It returns the
// highest-indexed goal Step's ContainerSet, trimmed to the requested
// Targets.
func (r *Runner) Execute(runCtx context.Context, pctx *pipectx.Context, goal []Goal, initial *container.Set, active map[string]bool) (*container.Set, error) {
	maxIdx := -1
	goalByStep := make(map[int][]Goal)
	for _, g := range goal {
		idx, err := r.stepIndex(g.Step)
		if err != nil {
			return nil, err
		}
		if idx > maxIdx {
			maxIdx = idx
		}
		goalByStep[idx] = append(goalByStep[idx], g)
	}
	if maxIdx < 0 {
		return nil, pipelineerr.New(pipelineerr.UnsatisfiableGoal, "goal is empty")
	}

	current := initial
	for i := 0; i <= maxIdx; i++ {
		select {
		case <-runCtx.Done():
			return nil, pipelineerr.Wrap(pipelineerr.Cancelled, "runner", runCtx.Err())
		default:
		}

		s := r.steps[i]
		if err := s.Execute(runCtx, pctx, current, active); err != nil {
			return nil, err
		}
		if i < maxIdx {
			current = current.Clone()
		}
	}

	return trim(current, goalByStep[maxIdx]), nil
}

// trim returns a ContainerSet containing only the Targets goal items
// request, leaving the source ContainerSet's own contents untouched (the
// Runner may drop excess Targets from its return value without erasing
// them from storage, per §4.5 "Result").
func trim(cs *container.Set, goal []Goal) *container.Set {
	out := container.NewSet()
	for _, g := range goal {
		c, ok := cs.Get(g.Container)
		if !ok {
			continue
		}
		dst, ok := out.Get(g.Container)
		if !ok {
			dst = c.Clone()
			dst.Remove(dst.Enumerate())
			out.Put(dst)
		}
		present := c.Enumerate()
		for _, wanted := range g.Targets.Slice() {
			for _, t := range target.Expand(present, wanted.Kind, wanted.Path).Slice() {
				data, ok := c.Get(t)
				if !ok {
					continue
				}
				dst.Put(t, data)
			}
		}
	}
	return out
}
