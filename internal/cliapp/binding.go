// Package cliapp wires the pipeline description loader, registry, Runner
// and persistence store into the concrete CLI contract of §6, the way the
// teacher's internal/cli.Runner wires model.Config into core.Pipeline.
package cliapp

import (
	"fmt"
	"strings"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/runner"
	"github.com/oxhq/pipecore/internal/target"
)

// ioBinding is a parsed `-i`/`-o` argument: "step:container:ospath". The
// Target's own path is derived from ospath's base name, and its Kind from
// the named container's sole accepted Kind — §6 binding syntax carries no
// Kind of its own.
type ioBinding struct {
	Step      string
	Container string
	OSPath    string
}

func parseIOBinding(raw string) (ioBinding, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return ioBinding{}, fmt.Errorf("binding %q must have the form step:container:path", raw)
	}
	return ioBinding{Step: parts[0], Container: parts[1], OSPath: parts[2]}, nil
}

// soleKind returns c's one accepted Kind, failing if it accepts zero or
// more than one — a binding without an explicit Kind is only unambiguous
// against a single-Kind Container.
func soleKind(c container.Container) (*kind.Kind, error) {
	ks := c.Kinds()
	if len(ks) != 1 {
		return nil, fmt.Errorf("container %q: binding without an explicit Kind requires exactly one accepted Kind, has %d", c.Name(), len(ks))
	}
	return ks[0], nil
}

// goalArg is a parsed positional goal argument:
// "step:container:target-path:Kind".
type goalArg struct {
	Step      string
	Container string
	Path      string
	KindName  string
}

func parseGoalArg(raw string) (goalArg, error) {
	parts := strings.SplitN(raw, ":", 4)
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[3] == "" {
		return goalArg{}, fmt.Errorf("goal target %q must have the form step:container:path:Kind", raw)
	}
	return goalArg{Step: parts[0], Container: parts[1], Path: parts[2], KindName: parts[3]}, nil
}

func splitPath(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "/")
}

// buildGoal resolves parsed goalArgs against kinds, grouping Targets by
// (step, container) into runner.Goal entries.
func buildGoal(args []goalArg, kinds *kind.Registry) ([]runner.Goal, error) {
	byKey := map[string]*runner.Goal{}
	order := make([]string, 0, len(args))
	for _, a := range args {
		k, err := kinds.MustGet(a.KindName)
		if err != nil {
			return nil, pipelineerr.Wrap(pipelineerr.UnknownKind, fmt.Sprintf("goal target step=%s container=%s", a.Step, a.Container), err)
		}
		path := splitPath(a.Path)
		if len(path) != k.Rank().Depth() {
			pad := make([]string, k.Rank().Depth())
			for i := range pad {
				pad[i] = target.Wildcard
			}
			copy(pad, path)
			path = pad
		}
		t, err := target.New(k, path)
		if err != nil {
			return nil, fmt.Errorf("goal target step=%s container=%s: %w", a.Step, a.Container, err)
		}

		key := a.Step + "\x00" + a.Container
		g, ok := byKey[key]
		if !ok {
			g = &runner.Goal{Step: a.Step, Container: a.Container, Targets: target.NewSet()}
			byKey[key] = g
			order = append(order, key)
		}
		g.Targets.Add(t)
	}

	out := make([]runner.Goal, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}
