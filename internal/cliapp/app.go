package cliapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipectx"
	"github.com/oxhq/pipecore/internal/pipelinedoc"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/pregistry"
	"github.com/oxhq/pipecore/internal/rank"
	"github.com/oxhq/pipecore/internal/runner"
	"github.com/oxhq/pipecore/internal/step"
	"github.com/oxhq/pipecore/internal/target"
)

// Config holds the parsed CLI contract of §6, independent of how the
// flags that produced it were read (cobra in cmd/pipeline-run, anything
// else in tests).
type Config struct {
	PipelineFile string
	Inputs       []string // -i step:container:ospath
	Outputs      []string // -o step:container:ospath
	GoalStep     string   // --step
	GoalTargets  []string // positional step:container:path:Kind
	Libraries    []string // -l
	Flags        []string // -f
	WorkDir      string   // -p
	Verbose      bool
	Release      bool
}

// App runs one pipeline invocation end to end: load, bind inputs, plan,
// execute, bind outputs, persist. It mirrors the teacher's
// internal/cli.Runner shape — a thin struct wrapping parsed flags whose
// Run method returns a process exit code instead of panicking or calling
// os.Exit itself, so tests can assert on it directly.
type App struct {
	Config
	Stderr io.Writer
}

func (a *App) logf(format string, args ...any) {
	if a.Stderr == nil {
		return
	}
	fmt.Fprintf(a.Stderr, format+"\n", args...)
}

// Run executes the configured pipeline and returns a process exit code:
// 0 on success, non-zero on failure (§6 "Exit code 0 on success, non-zero
// on failure; the Runner reports the specific error kind on stderr").
func (a *App) Run(ctx context.Context) int {
	kinds := kind.NewRegistry()
	ranks := rank.NewRegistry()
	reg := pregistry.New(kinds, ranks)

	for _, lib := range a.Libraries {
		if err := LoadLibrary(lib, reg); err != nil {
			a.fail(err)
			return 1
		}
	}

	raw, err := os.ReadFile(a.PipelineFile)
	if err != nil {
		a.fail(pipelineerr.Wrap(pipelineerr.DeserializationFailed, "reading pipeline description", err))
		return 1
	}
	doc, err := pipelinedoc.Parse(raw)
	if err != nil {
		a.fail(err)
		return 1
	}
	containers, steps, err := doc.Resolve(reg)
	if err != nil {
		a.fail(err)
		return 1
	}

	r, err := runner.New(steps, runner.WithRelease(a.Release))
	if err != nil {
		a.fail(err)
		return 1
	}

	pctx := pipectx.New(kinds, ranks)

	active := map[string]bool{}
	for _, f := range a.Flags {
		active[f] = true
	}

	bound := map[string]bool{}
	for _, raw := range a.Inputs {
		b, err := parseIOBinding(raw)
		if err != nil {
			a.fail(err)
			return 1
		}
		if len(steps) == 0 || b.Step != steps[0].Name {
			a.fail(fmt.Errorf("binding %q: CLI only binds the pipeline's first step (%q) directly", raw, firstStepName(steps)))
			return 1
		}
		c, ok := containers.Get(b.Container)
		if !ok {
			a.fail(pipelineerr.New(pipelineerr.UnknownContainer, fmt.Sprintf("input binding names unknown container %q", b.Container)))
			return 1
		}
		k, err := soleKind(c)
		if err != nil {
			a.fail(err)
			return 1
		}
		data, err := os.ReadFile(b.OSPath)
		if err != nil {
			a.fail(pipelineerr.Wrap(pipelineerr.DeserializationFailed, fmt.Sprintf("reading input %q", b.OSPath), err))
			return 1
		}
		if k.Rank().Depth() != 1 {
			a.fail(fmt.Errorf("input binding for container %q: Kind %q has rank depth %d, only depth-1 Kinds are supported by -i", b.Container, k.Name(), k.Rank().Depth()))
			return 1
		}
		t, err := target.New(k, []string{filepath.Base(b.OSPath)})
		if err != nil {
			a.fail(err)
			return 1
		}
		if err := c.Put(t, data); err != nil {
			a.fail(pipelineerr.Wrap(pipelineerr.ContainerTypeMismatch, "binding input", err))
			return 1
		}
		bound[b.Container] = true
	}

	goalArgs := make([]goalArg, 0, len(a.GoalTargets))
	for _, raw := range a.GoalTargets {
		g, err := parseGoalArg(raw)
		if err != nil {
			a.fail(err)
			return 1
		}
		if a.GoalStep != "" && g.Step != a.GoalStep {
			a.fail(fmt.Errorf("goal target %q names step %q, which does not match --step %q", raw, g.Step, a.GoalStep))
			return 1
		}
		goalArgs = append(goalArgs, g)
	}
	goal, err := buildGoal(goalArgs, kinds)
	if err != nil {
		a.fail(err)
		return 1
	}

	if _, err := r.Plan(goal, bound, active); err != nil {
		a.fail(err)
		return 1
	}

	result, err := r.Execute(ctx, pctx, goal, containers, active)
	if err != nil {
		a.fail(err)
		return 1
	}

	for _, raw := range a.Outputs {
		b, err := parseIOBinding(raw)
		if err != nil {
			a.fail(err)
			return 1
		}
		c, ok := result.Get(b.Container)
		if !ok {
			a.fail(pipelineerr.New(pipelineerr.UnknownContainer, fmt.Sprintf("output binding names container %q absent from the result", b.Container)))
			return 1
		}
		if err := writeOutput(c, b.OSPath); err != nil {
			a.fail(err)
			return 1
		}
	}

	if a.WorkDir != "" {
		if err := persistResult(a.WorkDir, a.Verbose, result); err != nil {
			a.fail(err)
			return 1
		}
	}

	return 0
}

func firstStepName(steps []*step.Step) string {
	if len(steps) == 0 {
		return ""
	}
	return steps[0].Name
}

func (a *App) fail(err error) {
	a.logf("error: %v", err)
}
