package contract

import (
	"fmt"

	"github.com/oxhq/pipecore/internal/target"
)

// PathFunction computes a rule's output path from a concrete input path,
// and its inverse: the input path pattern (possibly wildcarded) a
// requested output path could have come from. The three kinds named in
// spec §4.3 are Identity, Project and Constant below.
type PathFunction interface {
	// Apply computes the concrete output path from a concrete input path.
	Apply(inputPath []string) ([]string, error)

	// Invert computes the input path pattern (may contain wildcards) that
	// would produce outputPath, given inputArity components.
	Invert(outputPath []string, inputArity int) ([]string, error)

	// OutputArity returns the length of path this function produces for
	// an input of the given arity, used to validate a Rule's Kinds agree
	// with its path function at registration time.
	OutputArity(inputArity int) int
}

// Identity is the path function where the output path equals the input
// path verbatim (same Rank).
type Identity struct{}

func (Identity) Apply(inputPath []string) ([]string, error) {
	out := make([]string, len(inputPath))
	copy(out, inputPath)
	return out, nil
}

func (Identity) Invert(outputPath []string, inputArity int) ([]string, error) {
	if len(outputPath) != inputArity {
		return nil, fmt.Errorf("identity path function: output arity %d does not match input arity %d", len(outputPath), inputArity)
	}
	out := make([]string, len(outputPath))
	copy(out, outputPath)
	return out, nil
}

func (Identity) OutputArity(inputArity int) int { return inputArity }

// Project drops or reorders path components: Indices[i] names which input
// component supplies output component i. Used for a shift in Rank (e.g.
// Function -> Root drops the function-local components).
type Project struct {
	Indices []int
}

func (p Project) Apply(inputPath []string) ([]string, error) {
	out := make([]string, len(p.Indices))
	for i, idx := range p.Indices {
		if idx < 0 || idx >= len(inputPath) {
			return nil, fmt.Errorf("project path function: index %d out of range for input path of length %d", idx, len(inputPath))
		}
		out[i] = inputPath[idx]
	}
	return out, nil
}

func (p Project) Invert(outputPath []string, inputArity int) ([]string, error) {
	if len(outputPath) != len(p.Indices) {
		return nil, fmt.Errorf("project path function: output path length %d does not match arity %d", len(outputPath), len(p.Indices))
	}
	pattern := make([]string, inputArity)
	for i := range pattern {
		pattern[i] = target.Wildcard
	}
	for i, idx := range p.Indices {
		if idx < 0 || idx >= inputArity {
			return nil, fmt.Errorf("project path function: index %d out of range for input arity %d", idx, inputArity)
		}
		pattern[idx] = outputPath[i]
	}
	return pattern, nil
}

func (p Project) OutputArity(int) int { return len(p.Indices) }

// Constant always produces the same fixed path, regardless of input -
// used to promote artifacts to a Root-rank container (e.g. a single
// summary string derived from every function in a binary).
type Constant struct {
	Path []string
}

func (c Constant) Apply([]string) ([]string, error) {
	out := make([]string, len(c.Path))
	copy(out, c.Path)
	return out, nil
}

// Invert cannot recover which input row produced a constant output, so it
// requests every row: a fully wildcarded pattern of inputArity
// components. This is the wildcard propagation named in §4.3.
func (c Constant) Invert(outputPath []string, inputArity int) ([]string, error) {
	if len(outputPath) != len(c.Path) {
		return nil, fmt.Errorf("constant path function: output path length %d does not match declared constant length %d", len(outputPath), len(c.Path))
	}
	pattern := make([]string, inputArity)
	for i := range pattern {
		pattern[i] = target.Wildcard
	}
	return pattern, nil
}

func (c Constant) OutputArity(int) int { return len(c.Path) }
