// Package pipes provides concrete, registrable Pipe implementations a
// library (internal/cliapp.LibraryFunc) wires into a pregistry.Registry.
// Each mirrors one of the shapes named in §4.3: a straight copy (Identity),
// a self-sufficient producer (Constant), and a legacy pass-manager
// adapter (LLVMPipe) whose Passes list is validated at construction.
package pipes

import (
	"fmt"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/contract"
	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipe"
	"github.com/oxhq/pipecore/internal/pipectx"
	"github.com/oxhq/pipecore/internal/target"
)

// CopyPipe copies every concrete Target of Kind k from one container to
// another unchanged, the identity rewrite of §4.3.
type CopyPipe struct {
	From, To string
	K        *kind.Kind
}

// NewCopyPipe builds a PipeFactory-shaped constructor bound to Kind k; the
// usedContainers it receives at load time must name exactly [from, to].
func NewCopyPipe(k *kind.Kind) func(usedContainers, passes []string) (pipe.Pipe, error) {
	return func(usedContainers, passes []string) (pipe.Pipe, error) {
		if len(usedContainers) != 2 {
			return nil, fmt.Errorf("CopyPipe requires exactly 2 usedContainers, got %d", len(usedContainers))
		}
		return &CopyPipe{From: usedContainers[0], To: usedContainers[1], K: k}, nil
	}
}

func (p *CopyPipe) Name() string             { return "CopyPipe" }
func (p *CopyPipe) UsedContainers() []string { return []string{p.From, p.To} }
func (p *CopyPipe) ReadsGlobals() []string   { return nil }

func (p *CopyPipe) Contract() *contract.Contract {
	c, _ := contract.New(contract.Rule{
		InputContainer:  p.From,
		InputKind:       p.K,
		InputPath:       wildcardPath(p.K),
		OutputContainer: p.To,
		OutputKind:      p.K,
		PathFn:          contract.Identity{},
		Preserve:        true,
	})
	return c
}

func (p *CopyPipe) Execute(ctx *pipectx.Context, containers *container.Set) error {
	from, ok := containers.Get(p.From)
	if !ok {
		return fmt.Errorf("CopyPipe: container %q not found", p.From)
	}
	to, ok := containers.Get(p.To)
	if !ok {
		return fmt.Errorf("CopyPipe: container %q not found", p.To)
	}
	for _, t := range from.Enumerate().Slice() {
		if !t.Kind.Matches(p.K) {
			continue
		}
		data, ok := from.Get(t)
		if !ok {
			continue
		}
		if err := to.Put(t, data); err != nil {
			return fmt.Errorf("CopyPipe: %w", err)
		}
	}
	return nil
}

func wildcardPath(k *kind.Kind) []string {
	path := make([]string, k.Rank().Depth())
	for i := range path {
		path[i] = target.Wildcard
	}
	return path
}

// ConstPipe writes a single fixed Target into its output container on
// every run, regardless of input — a self-sufficient producer (§4.3
// Constant path function), used to seed a run with no external input.
type ConstPipe struct {
	To   string
	K    *kind.Kind
	Path []string
	Data []byte
}

func (p *ConstPipe) Name() string             { return "ConstPipe" }
func (p *ConstPipe) UsedContainers() []string { return []string{p.To} }
func (p *ConstPipe) ReadsGlobals() []string   { return nil }

func (p *ConstPipe) Contract() *contract.Contract {
	c, _ := contract.New(contract.Rule{
		InputContainer:  p.To,
		InputKind:       p.K,
		InputPath:       wildcardPath(p.K),
		OutputContainer: p.To,
		OutputKind:      p.K,
		PathFn:          contract.Constant{Path: p.Path},
	})
	return c
}

// NewConstPipe builds a PipeFactory-shaped constructor for a ConstPipe
// writing data under path in Kind k. usedContainers must name exactly
// [to].
func NewConstPipe(k *kind.Kind, path []string, data []byte) func(usedContainers, passes []string) (pipe.Pipe, error) {
	return func(usedContainers, passes []string) (pipe.Pipe, error) {
		if len(usedContainers) != 1 {
			return nil, fmt.Errorf("ConstPipe requires exactly 1 usedContainer, got %d", len(usedContainers))
		}
		return &ConstPipe{To: usedContainers[0], K: k, Path: path, Data: data}, nil
	}
}

func (p *ConstPipe) Execute(ctx *pipectx.Context, containers *container.Set) error {
	to, ok := containers.Get(p.To)
	if !ok {
		return fmt.Errorf("ConstPipe: container %q not found", p.To)
	}
	t, err := target.New(p.K, p.Path)
	if err != nil {
		return fmt.Errorf("ConstPipe: %w", err)
	}
	return to.Put(t, p.Data)
}

// LLVMPipe adapts a legacy, flat pass-manager-style transformation over a
// single in-place container: an ordered list of named passes, each
// validated against a fixed allowlist at construction time so a pipeline
// referencing an unknown pass fails at load rather than mid-run (§9
// "Legacy pass-manager integration").
type LLVMPipe struct {
	Container string
	K         *kind.Kind
	Passes    []string
}

// KnownPasses is the fixed set of pass names LLVMPipe accepts. A real
// deployment would populate this from whatever legacy pass manager it
// adapts; it is a static allowlist here since the core has no dependency
// on an actual LLVM binding.
var KnownPasses = map[string]bool{
	"globaldce": true,
	"mem2reg":   true,
	"instcombine": true,
	"simplifycfg": true,
}

// NewLLVMPipe validates passes against KnownPasses before returning a
// Pipe, so an unrecognized pass name surfaces as UnknownPipe during
// pipeline loading (propagated by pregistry.Registry.NewPipe).
func NewLLVMPipe(k *kind.Kind) func(usedContainers, passes []string) (pipe.Pipe, error) {
	return func(usedContainers, passes []string) (pipe.Pipe, error) {
		if len(usedContainers) != 1 {
			return nil, fmt.Errorf("LLVMPipe requires exactly 1 usedContainer, got %d", len(usedContainers))
		}
		for _, name := range passes {
			if !KnownPasses[name] {
				return nil, fmt.Errorf("unknown pass %q", name)
			}
		}
		cp := make([]string, len(passes))
		copy(cp, passes)
		return &LLVMPipe{Container: usedContainers[0], K: k, Passes: cp}, nil
	}
}

func (p *LLVMPipe) Name() string             { return "LLVMPipe" }
func (p *LLVMPipe) UsedContainers() []string { return []string{p.Container} }
func (p *LLVMPipe) ReadsGlobals() []string   { return nil }

func (p *LLVMPipe) Contract() *contract.Contract {
	c, _ := contract.New(contract.Rule{
		InputContainer:  p.Container,
		InputKind:       p.K,
		InputPath:       wildcardPath(p.K),
		OutputContainer: p.Container,
		OutputKind:      p.K,
		PathFn:          contract.Identity{},
		Preserve:        true,
	})
	return c
}

// Execute is a no-op beyond presence: this pipe models in-place
// optimization passes whose byte-level effect the core never inspects.
// Running with zero Passes is valid (a no-op compilation barrier).
func (p *LLVMPipe) Execute(ctx *pipectx.Context, containers *container.Set) error {
	if _, ok := containers.Get(p.Container); !ok {
		return fmt.Errorf("LLVMPipe: container %q not found", p.Container)
	}
	return nil
}
