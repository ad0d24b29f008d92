// Package e2e exercises the properties named in the reference scenarios:
// a plain copy under an identity contract, flag-gated planning, cross-step
// propagation of a self-sufficient producer, explicit and Global-triggered
// invalidation, and fail-fast rejection of an unregistrable pipe. Each test
// wires the same packages an end user's pipeline description would
// resolve into (kind/rank/container/contract/pipe/step/runner/invalidator),
// driving them directly rather than through cliapp so each scenario can
// assert on exact intermediate Container state the one-shot CLI contract
// never exposes; the pipeline-description-and-load path itself is covered
// separately via cliapp.App in the missing-pass case below, where the
// failure is about resolving a description rather than running one.
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/oxhq/pipecore/internal/cliapp"
	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/contract"
	"github.com/oxhq/pipecore/internal/invalidator"
	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipe"
	"github.com/oxhq/pipecore/internal/pipectx"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/pipes"
	"github.com/oxhq/pipecore/internal/rank"
	"github.com/oxhq/pipecore/internal/runner"
	"github.com/oxhq/pipecore/internal/step"
	"github.com/oxhq/pipecore/internal/target"
)

func newStringKind(t *testing.T) (*kind.Registry, *rank.Registry, *kind.Kind) {
	t.Helper()
	ranks := rank.NewRegistry()
	kinds := kind.NewRegistry()
	root, err := ranks.RegisterRoot("Root")
	if err != nil {
		t.Fatalf("registering root rank: %v", err)
	}
	k, err := kinds.Register("StringKind", root, "")
	if err != nil {
		t.Fatalf("registering StringKind: %v", err)
	}
	return kinds, ranks, k
}

func concreteTarget(t *testing.T, k *kind.Kind, path string) target.Target {
	t.Helper()
	tg, err := target.New(k, []string{path})
	if err != nil {
		t.Fatalf("building target %q: %v", path, err)
	}
	return tg
}

func wildcard(t *testing.T, k *kind.Kind) target.Target {
	t.Helper()
	tg, err := target.New(k, []string{target.Wildcard})
	if err != nil {
		t.Fatalf("building wildcard target: %v", err)
	}
	return tg
}

// TestCopyPipeIdentityContract is scenario S1: a single Step copies three
// concrete Targets through an identity CopyPipe, goal the wildcard on the
// destination container.
func TestCopyPipeIdentityContract(t *testing.T) {
	kinds, _, k := newStringKind(t)

	strings1 := container.NewBlob("Strings1", "Blob", k)
	strings2 := container.NewBlob("Strings2", "Blob", k)
	for _, line := range []string{"a", "b", "c"} {
		if err := strings1.Put(concreteTarget(t, k, line), []byte(line)); err != nil {
			t.Fatalf("seeding Strings1: %v", err)
		}
	}

	cp := &pipes.CopyPipe{From: "Strings1", To: "Strings2", K: k}
	firstStep := &step.Step{Name: "FirstStep", Pipes: []pipe.Pipe{cp}}

	r, err := runner.New([]*step.Step{firstStep})
	if err != nil {
		t.Fatalf("building runner: %v", err)
	}
	pctx := pipectx.New(kinds, rank.NewRegistry())

	goalTargets := target.NewSet()
	goalTargets.Add(wildcard(t, k))
	goal := []runner.Goal{{Step: "FirstStep", Container: "Strings2", Targets: goalTargets}}
	bound := map[string]bool{"Strings1": true}

	if _, err := r.Plan(goal, bound, nil); err != nil {
		t.Fatalf("Plan: %v", err)
	}

	initial := container.NewSet(strings1, strings2)
	result, err := r.Execute(context.Background(), pctx, goal, initial, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, ok := result.Get("Strings2")
	if !ok {
		t.Fatalf("result has no Strings2 container")
	}
	for _, line := range []string{"a", "b", "c"} {
		data, ok := out.Get(concreteTarget(t, k, line))
		if !ok {
			t.Fatalf("Strings2 missing target %q", line)
		}
		if string(data) != line {
			t.Fatalf("Strings2 target %q = %q, want %q", line, data, line)
		}
	}
}

// TestFlagGatedCopyPipe is scenario S2: the same pipeline as S1 but the
// CopyPipe requires flag DoCopy. Absent the flag, planning must fail with
// UnsatisfiableGoal; present, it must succeed exactly as S1.
func TestFlagGatedCopyPipe(t *testing.T) {
	kinds, _, k := newStringKind(t)

	strings1 := container.NewBlob("Strings1", "Blob", k)
	strings2 := container.NewBlob("Strings2", "Blob", k)
	for _, line := range []string{"a", "b", "c"} {
		if err := strings1.Put(concreteTarget(t, k, line), []byte(line)); err != nil {
			t.Fatalf("seeding Strings1: %v", err)
		}
	}

	gated := &pipe.Gated{
		Inner:         &pipes.CopyPipe{From: "Strings1", To: "Strings2", K: k},
		RequiredFlags: []string{"DoCopy"},
	}
	firstStep := &step.Step{Name: "FirstStep", Pipes: []pipe.Pipe{gated}}

	r, err := runner.New([]*step.Step{firstStep})
	if err != nil {
		t.Fatalf("building runner: %v", err)
	}
	pctx := pipectx.New(kinds, rank.NewRegistry())

	goalTargets := target.NewSet()
	goalTargets.Add(wildcard(t, k))
	goal := []runner.Goal{{Step: "FirstStep", Container: "Strings2", Targets: goalTargets}}
	bound := map[string]bool{"Strings1": true}

	if _, err := r.Plan(goal, bound, nil); !pipelineerr.Is(err, pipelineerr.UnsatisfiableGoal) {
		t.Fatalf("Plan without DoCopy: got %v, want UnsatisfiableGoal", err)
	}

	active := map[string]bool{"DoCopy": true}
	if _, err := r.Plan(goal, bound, active); err != nil {
		t.Fatalf("Plan with DoCopy: %v", err)
	}

	initial := container.NewSet(strings1, strings2)
	result, err := r.Execute(context.Background(), pctx, goal, initial, active)
	if err != nil {
		t.Fatalf("Execute with DoCopy: %v", err)
	}
	out, ok := result.Get("Strings2")
	if !ok || !out.Contains(concreteTarget(t, k, "a")) {
		t.Fatalf("Strings2 missing expected targets after DoCopy run")
	}
}

// buildCrossStepPipeline wires scenario S3/S4's two Steps: A produces
// c1:root:K1 with no real external input (a fixed constant written by a
// ConstPipe), B copies c1's Kind K1 onward into c2's Kind K2 under an
// Identity path function.
func buildCrossStepPipeline(t *testing.T) (*kind.Kind, *kind.Kind, *step.Step, *step.Step) {
	t.Helper()
	ranks := rank.NewRegistry()
	kinds := kind.NewRegistry()
	root, err := ranks.RegisterRoot("Root")
	if err != nil {
		t.Fatalf("registering root rank: %v", err)
	}
	k1, err := kinds.Register("K1", root, "")
	if err != nil {
		t.Fatalf("registering K1: %v", err)
	}
	k2, err := kinds.Register("K2", root, "")
	if err != nil {
		t.Fatalf("registering K2: %v", err)
	}

	constPipe := &pipes.ConstPipe{To: "c1", K: k1, Path: []string{"only"}, Data: []byte("seed")}
	stepA := &step.Step{Name: "A", Pipes: []pipe.Pipe{constPipe}}

	transform := &crossKindCopyPipe{from: "c1", to: "c2", in: k1, out: k2}
	stepB := &step.Step{Name: "B", Pipes: []pipe.Pipe{transform}}

	return k1, k2, stepA, stepB
}

// crossKindCopyPipe copies a Target from one Kind to another of the same
// Rank, unlike pipes.CopyPipe which keeps a single Kind fixed on both sides
// — needed here since Step B's input Kind (K1) differs from its output
// Kind (K2).
type crossKindCopyPipe struct {
	from, to string
	in, out  *kind.Kind
}

func (p *crossKindCopyPipe) Name() string             { return "CrossKindCopyPipe" }
func (p *crossKindCopyPipe) UsedContainers() []string { return []string{p.from, p.to} }
func (p *crossKindCopyPipe) ReadsGlobals() []string   { return nil }

func (p *crossKindCopyPipe) Contract() *contract.Contract {
	path := make([]string, p.in.Rank().Depth())
	for i := range path {
		path[i] = target.Wildcard
	}
	c, _ := contract.New(contract.Rule{
		InputContainer:  p.from,
		InputKind:       p.in,
		InputPath:       path,
		OutputContainer: p.to,
		OutputKind:      p.out,
		PathFn:          contract.Identity{},
		Preserve:        true,
	})
	return c
}

func (p *crossKindCopyPipe) Execute(ctx *pipectx.Context, containers *container.Set) error {
	from, ok := containers.Get(p.from)
	if !ok {
		return fmt.Errorf("crossKindCopyPipe: container %q not found", p.from)
	}
	to, ok := containers.Get(p.to)
	if !ok {
		return fmt.Errorf("crossKindCopyPipe: container %q not found", p.to)
	}
	for _, t := range from.Enumerate().Slice() {
		if !t.Kind.Matches(p.in) {
			continue
		}
		data, ok := from.Get(t)
		if !ok {
			continue
		}
		nt, err := target.New(p.out, t.Path)
		if err != nil {
			return err
		}
		if err := to.Put(nt, data); err != nil {
			return err
		}
	}
	return nil
}

// TestCrossStepPropagation is scenario S3: Step A's constant producer needs
// nothing bound externally, and its output reaches Step B's goal Target.
func TestCrossStepPropagation(t *testing.T) {
	_, k2, stepA, stepB := buildCrossStepPipeline(t)

	c1 := container.NewBlob("c1", "Blob", stepA.Pipes[0].(*pipes.ConstPipe).K)
	c2 := container.NewBlob("c2", "Blob", k2)

	pctx := pipectx.New(kind.NewRegistry(), rank.NewRegistry())
	containers := container.NewSet(c1, c2)

	if err := stepA.Execute(context.Background(), pctx, containers, nil); err != nil {
		t.Fatalf("executing step A: %v", err)
	}
	if err := stepB.Execute(context.Background(), pctx, containers, nil); err != nil {
		t.Fatalf("executing step B: %v", err)
	}

	out, ok := containers.Get("c2")
	if !ok {
		t.Fatalf("no c2 container after execution")
	}
	data, ok := out.Get(concreteTarget(t, k2, "only"))
	if !ok {
		t.Fatalf("c2 missing the Target B should have produced from A's constant")
	}
	if string(data) != "seed" {
		t.Fatalf("c2 target data = %q, want %q", data, "seed")
	}
}

// TestExplicitInvalidation is scenario S4: invalidating A:c1:root:K1 after a
// run must empty both c1 in A's own ContainerSet view and c2 in B's.
func TestExplicitInvalidation(t *testing.T) {
	k1, k2, stepA, stepB := buildCrossStepPipeline(t)

	c1 := container.NewBlob("c1", "Blob", k1)
	c2 := container.NewBlob("c2", "Blob", k2)
	pctx := pipectx.New(kind.NewRegistry(), rank.NewRegistry())

	csA := container.NewSet(c1, c2)
	if err := stepA.Execute(context.Background(), pctx, csA, nil); err != nil {
		t.Fatalf("executing step A: %v", err)
	}
	csB := csA.Clone()
	if err := stepB.Execute(context.Background(), pctx, csB, nil); err != nil {
		t.Fatalf("executing step B: %v", err)
	}

	containersByStep := map[string]*container.Set{"A": csA, "B": csB}

	inv, err := invalidator.New([]*step.Step{stepA, stepB})
	if err != nil {
		t.Fatalf("building invalidator: %v", err)
	}

	explicit := target.NewSet()
	explicit.Add(concreteTarget(t, k1, "only"))
	if _, err := inv.Targets("A", "c1", explicit, nil, containersByStep); err != nil {
		t.Fatalf("invalidating: %v", err)
	}

	aC1, _ := csA.Get("c1")
	if aC1.Enumerate().Len() != 0 {
		t.Fatalf("expected c1 empty in step A's ContainerSet after invalidation, got %d targets", aC1.Enumerate().Len())
	}
	bC2, _ := csB.Get("c2")
	if bC2.Enumerate().Len() != 0 {
		t.Fatalf("expected c2 empty in step B's ContainerSet after invalidation, got %d targets", bC2.Enumerate().Len())
	}
}

type stringGlobal string

func (g stringGlobal) Serialize() ([]byte, error) { return []byte(g), nil }

// modelReaderPipe reads Global modelName and writes a fixed Target to "out"
// on every run, declaring the read so the Invalidator's Global dependency
// model (§4.6) can seed invalidation from a Mutate call.
type modelReaderPipe struct {
	modelName string
	k         *kind.Kind
}

func (p *modelReaderPipe) Name() string             { return "ModelReaderPipe" }
func (p *modelReaderPipe) UsedContainers() []string { return []string{"out"} }
func (p *modelReaderPipe) ReadsGlobals() []string   { return []string{p.modelName} }

func (p *modelReaderPipe) Contract() *contract.Contract {
	path := make([]string, p.k.Rank().Depth())
	for i := range path {
		path[i] = target.Wildcard
	}
	c, _ := contract.New(contract.Rule{
		InputContainer:  "out",
		InputKind:       p.k,
		InputPath:       path,
		OutputContainer: "out",
		OutputKind:      p.k,
		PathFn:          contract.Constant{Path: []string{"result"}},
	})
	return c
}

func (p *modelReaderPipe) Execute(ctx *pipectx.Context, containers *container.Set) error {
	if _, ok := ctx.Get(p.modelName); !ok {
		return fmt.Errorf("modelReaderPipe: global %q not registered", p.modelName)
	}
	out, ok := containers.Get("out")
	if !ok {
		return fmt.Errorf("modelReaderPipe: container %q not found", "out")
	}
	t, err := target.New(p.k, []string{"result"})
	if err != nil {
		return err
	}
	return out.Put(t, []byte("derived"))
}

// TestGlobalInvalidation is scenario S5: after a full run, mutating the
// Global a Pipe declared reading removes the Target it produced.
func TestGlobalInvalidation(t *testing.T) {
	ranks := rank.NewRegistry()
	kinds := kind.NewRegistry()
	root, err := ranks.RegisterRoot("Root")
	if err != nil {
		t.Fatalf("registering root rank: %v", err)
	}
	k, err := kinds.Register("K", root, "")
	if err != nil {
		t.Fatalf("registering K: %v", err)
	}

	pctx := pipectx.New(kinds, ranks)
	if err := pctx.RegisterGlobal("model.yml", stringGlobal("v1")); err != nil {
		t.Fatalf("registering global: %v", err)
	}

	p := &modelReaderPipe{modelName: "model.yml", k: k}
	s := &step.Step{Name: "S", Pipes: []pipe.Pipe{p}}

	out := container.NewBlob("out", "Blob", k)
	containers := container.NewSet(out)
	if err := s.Execute(context.Background(), pctx, containers, nil); err != nil {
		t.Fatalf("executing step: %v", err)
	}
	if !out.Contains(concreteTarget(t, k, "result")) {
		t.Fatalf("expected out:K:result to be present after the initial run")
	}

	if err := pctx.Mutate("model.yml", stringGlobal("v2")); err != nil {
		t.Fatalf("mutating global: %v", err)
	}

	inv, err := invalidator.New([]*step.Step{s})
	if err != nil {
		t.Fatalf("building invalidator: %v", err)
	}
	containersByStep := map[string]*container.Set{"S": containers}
	if _, err := inv.Global("model.yml", nil, containersByStep); err != nil {
		t.Fatalf("Global invalidation: %v", err)
	}

	if out.Contains(concreteTarget(t, k, "result")) {
		t.Fatalf("expected out:K:result to be removed after Global invalidation")
	}
}

// TestMissingPassFailsBeforeExecution is scenario S6: a pipeline naming an
// LLVMPipe with an unrecognized pass must fail to load, via cliapp.App's
// ordinary Run path, before any Step executes.
func TestMissingPassFailsBeforeExecution(t *testing.T) {
	dir := t.TempDir()
	pipelineFile := filepath.Join(dir, "pipeline.yaml")
	contents := `
containers:
  - name: in
    type: Blob
steps:
  - name: S1
    pipes:
      - type: LLVMPipe
        usedContainers: [in]
        passes: [nonexistent-pass]
`
	if err := os.WriteFile(pipelineFile, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing pipeline file: %v", err)
	}

	var stderr bytes.Buffer
	app := &cliapp.App{
		Config: cliapp.Config{
			PipelineFile: pipelineFile,
			GoalTargets:  []string{"S1:in:whatever:Bytes"},
			Libraries:    []string{"core"},
		},
		Stderr: &stderr,
	}

	code := app.Run(context.Background())
	if code == 0 {
		t.Fatalf("expected a non-zero exit code for a pipeline naming an unknown LLVM pass")
	}
	if !bytes.Contains(stderr.Bytes(), []byte(pipelineerr.UnknownPipe)) {
		t.Fatalf("stderr = %q, want it to report %s", stderr.String(), pipelineerr.UnknownPipe)
	}
}
