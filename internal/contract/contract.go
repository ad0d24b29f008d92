// Package contract implements the declarative input->output rewrite rule
// at Target granularity (spec §4.3): given a requested output TargetSet, a
// Contract deduces the input TargetSet a Pipe needs (planning), and given a
// concrete input TargetSet, it predicts the output TargetSet a Pipe run
// will produce (prediction). This is the planning half of the Pipeline
// Core; a Pipe pairs one Contract with an execute operation (see package
// pipe).
package contract

import (
	"fmt"

	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/target"
)

// Rule is a single rewrite rule: a pattern over one input container plus
// the description of the output it produces in another (or the same)
// container.
type Rule struct {
	// InputContainer is the container name this rule reads from.
	InputContainer string
	// InputKind is the Kind pattern inputs are matched against (via
	// descendant matching, kind.Kind.Matches).
	InputKind *kind.Kind
	// InputPath is the path pattern (may contain target.Wildcard)
	// inputs are matched against; its length must equal InputKind's Rank
	// depth.
	InputPath []string

	// OutputContainer is the container name this rule writes to.
	OutputContainer string
	// OutputKind is the exact Kind this rule produces (never a pattern).
	OutputKind *kind.Kind
	// PathFn computes the output path from a matched input path.
	PathFn PathFunction

	// Preserve indicates copy (true) vs move (false) semantics: whether
	// matched inputs remain in their container after the rule runs.
	Preserve bool
}

func (r Rule) validate() error {
	if r.InputContainer == "" || r.OutputContainer == "" {
		return pipelineerr.New(pipelineerr.InvalidContract, "rule must name both input and output containers")
	}
	if r.InputKind == nil || r.OutputKind == nil {
		return pipelineerr.New(pipelineerr.InvalidContract, "rule must name both input and output kinds")
	}
	if len(r.InputPath) != r.InputKind.Rank().Depth() {
		return pipelineerr.New(pipelineerr.InvalidContract, fmt.Sprintf(
			"rule input path has %d components but kind %q has rank depth %d",
			len(r.InputPath), r.InputKind.Name(), r.InputKind.Rank().Depth(),
		))
	}
	if r.PathFn == nil {
		return pipelineerr.New(pipelineerr.InvalidContract, "rule must specify a path function")
	}
	if got := r.PathFn.OutputArity(len(r.InputPath)); got != r.OutputKind.Rank().Depth() {
		return pipelineerr.New(pipelineerr.InvalidContract, fmt.Sprintf(
			"rule path function produces arity %d but output kind %q has rank depth %d",
			got, r.OutputKind.Name(), r.OutputKind.Rank().Depth(),
		))
	}
	return nil
}

// Contract is a set of Rules, combined by union.
type Contract struct {
	Rules []Rule
}

// New validates every rule's arity against its declared Kinds and returns
// InvalidContract on the first mismatch.
func New(rules ...Rule) (*Contract, error) {
	for i, r := range rules {
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}
	return &Contract{Rules: rules}, nil
}

// Empty returns a Contract with no rules, used for Pipes gated out by
// EnabledWhen (spec §4.4): the planner treats them as producing and
// requiring nothing.
func Empty() *Contract { return &Contract{} }

// Partition splits wanted into the part some Rule in c claims to produce
// (explained) and the part no Rule targets by (container, Kind) at all
// (unexplained). The planner substitutes explained entries with their
// deduced precondition and carries unexplained entries backward unchanged,
// since nothing in this Contract ever writes them — they must already be
// present at the Step's entry.
func (c *Contract) Partition(wanted ByContainer) (explained, unexplained ByContainer) {
	explained = ByContainer{}
	unexplained = ByContainer{}
	for name, ts := range wanted {
		expl := target.NewSet()
		unexpl := target.NewSet()
		for _, t := range ts.Slice() {
			if c.coversOutput(name, t.Kind) {
				expl.Add(t)
			} else {
				unexpl.Add(t)
			}
		}
		if expl.Len() > 0 {
			explained[name] = expl
		}
		if unexpl.Len() > 0 {
			unexplained[name] = unexpl
		}
	}
	return explained, unexplained
}

// FilterInputs returns the portion of entry that matches some Rule's input
// pattern (container name plus descendant-Kind matching) — the
// Invalidator's "staleInputs is the portion of p's reads intersecting
// already-known-stale Targets" (§4.6).
func (c *Contract) FilterInputs(entry ByContainer) ByContainer {
	out := ByContainer{}
	for name, ts := range entry {
		matched := target.NewSet()
		for _, t := range ts.Slice() {
			for _, rule := range c.Rules {
				if rule.InputContainer == name && t.Kind.Matches(rule.InputKind) {
					matched.Add(t)
					break
				}
			}
		}
		if matched.Len() > 0 {
			out[name] = matched
		}
	}
	return out
}

func (c *Contract) coversOutput(containerName string, k *kind.Kind) bool {
	for _, rule := range c.Rules {
		if rule.OutputContainer == containerName && rule.OutputKind == k {
			return true
		}
	}
	return false
}

// ByContainer is a TargetSet keyed by container name, the granularity at
// which Contracts operate (a Pipe may read/write several containers).
type ByContainer map[string]*target.Set

// UnionByContainer merges a and b container-by-container, returning a new
// ByContainer that shares no Sets with either argument. Used by the
// planner to accumulate need across Pipes and Steps, and by the
// Invalidator to accumulate staleness across Pipes.
func UnionByContainer(a, b ByContainer) ByContainer {
	out := ByContainer{}
	for name, ts := range a {
		out[name] = ts.Union(nil)
	}
	for name, ts := range b {
		if out[name] == nil {
			out[name] = target.NewSet()
		}
		out[name] = out[name].Union(ts)
	}
	return out
}

// CloneByContainer returns a shallow copy of bc with independent Sets.
func CloneByContainer(bc ByContainer) ByContainer {
	return UnionByContainer(bc, nil)
}

// DeducePostcondition predicts the output TargetSet this Contract's Pipe
// will produce when run against the concrete input TargetSet in.
func (c *Contract) DeducePostcondition(in ByContainer) (ByContainer, error) {
	out := ByContainer{}
	for _, rule := range c.Rules {
		present, ok := in[rule.InputContainer]
		if !ok {
			continue
		}
		for _, t := range present.Slice() {
			if !t.Concrete() {
				continue
			}
			if !t.Satisfies(rule.InputKind, rule.InputPath) {
				continue
			}
			outPath, err := rule.PathFn.Apply(t.Path)
			if err != nil {
				return nil, pipelineerr.Wrap(pipelineerr.InvalidContract, "applying path function", err)
			}
			ot, err := target.New(rule.OutputKind, outPath)
			if err != nil {
				return nil, pipelineerr.Wrap(pipelineerr.InvalidContract, "building output target", err)
			}
			if out[rule.OutputContainer] == nil {
				out[rule.OutputContainer] = target.NewSet()
			}
			out[rule.OutputContainer].Add(ot)
		}
	}
	return out, nil
}

// DeducePrecondition computes the input TargetSet (possibly wildcarded)
// needed to produce (a superset of) the requested output TargetSet.
// Multiple applicable rules combine by union.
func (c *Contract) DeducePrecondition(wanted ByContainer) (ByContainer, error) {
	need := ByContainer{}
	for _, rule := range c.Rules {
		requested, ok := wanted[rule.OutputContainer]
		if !ok {
			continue
		}
		for _, ot := range requested.Slice() {
			if ot.Kind != rule.OutputKind {
				continue
			}
			inPattern, err := rule.PathFn.Invert(ot.Path, len(rule.InputPath))
			if err != nil {
				return nil, pipelineerr.Wrap(pipelineerr.InvalidContract, "inverting path function", err)
			}
			it, err := target.New(rule.InputKind, inPattern)
			if err != nil {
				return nil, pipelineerr.Wrap(pipelineerr.InvalidContract, "building input target pattern", err)
			}
			if need[rule.InputContainer] == nil {
				need[rule.InputContainer] = target.NewSet()
			}
			need[rule.InputContainer].Add(it)
		}
	}
	return need, nil
}
