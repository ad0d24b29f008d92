// Package pipelinedoc loads the persisted, human-authored pipeline
// description (spec §6 "Pipeline description") and resolves it against a
// pregistry.Registry into runnable Steps and an initial ContainerSet. This
// is the one place YAML enters the Pipeline Core, mirroring how the
// teacher keeps its own config surface (internal/config) a thin, fail-fast
// translation from an external format into the types the core actually
// operates on.
package pipelinedoc

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/pipe"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/pregistry"
	"github.com/oxhq/pipecore/internal/step"
)

// ContainerDecl declares one named Container instance and its registered
// type.
type ContainerDecl struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// PipeDecl declares one Pipe within a Step.
type PipeDecl struct {
	Type           string   `yaml:"type"`
	UsedContainers []string `yaml:"usedContainers"`
	// Passes names an ordered list of inner pass names for LLVM-like
	// compound Pipes (§9 "Legacy pass-manager integration"). Validity is
	// checked by the registered PipeFactory itself, not by this loader.
	Passes []string `yaml:"passes,omitempty"`
	// EnabledWhen lists the flags that must all be active for this Pipe
	// to run (§4.4); empty means unconditional.
	EnabledWhen []string `yaml:"enabledWhen,omitempty"`
}

// StepDecl declares one ordered Step and its Pipes.
type StepDecl struct {
	Name  string     `yaml:"name"`
	Pipes []PipeDecl `yaml:"pipes"`
}

// Document is the top-level persisted pipeline description.
type Document struct {
	Containers []ContainerDecl `yaml:"containers"`
	Steps      []StepDecl      `yaml:"steps"`
}

// Parse unmarshals a pipeline description from YAML.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.DeserializationFailed, "parsing pipeline description", err)
	}
	return &doc, nil
}

// Resolve instantiates doc's Containers and Steps against reg, failing
// fast on the first unknown name (§6, §8 scenario S6 "Pipeline load must
// fail... before any execution"). The returned ContainerSet holds one
// freshly constructed, empty Container per declared name.
func (doc *Document) Resolve(reg *pregistry.Registry) (*container.Set, []*step.Step, error) {
	containers := container.NewSet()
	for _, cd := range doc.Containers {
		if cd.Name == "" || cd.Type == "" {
			return nil, nil, pipelineerr.New(pipelineerr.UnknownContainer, "container declaration missing name or type")
		}
		c, err := reg.NewContainer(cd.Type, cd.Name)
		if err != nil {
			return nil, nil, err
		}
		containers.Put(c)
	}

	steps := make([]*step.Step, 0, len(doc.Steps))
	for _, sd := range doc.Steps {
		if sd.Name == "" {
			return nil, nil, pipelineerr.New(pipelineerr.UnknownStep, "step declaration missing a name")
		}
		pipes := make([]pipe.Pipe, 0, len(sd.Pipes))
		for _, pd := range sd.Pipes {
			p, err := reg.NewPipe(pd.Type, pd.UsedContainers, pd.Passes)
			if err != nil {
				return nil, nil, fmt.Errorf("step %q: %w", sd.Name, err)
			}
			if len(pd.EnabledWhen) > 0 {
				p = &pipe.Gated{Inner: p, RequiredFlags: pd.EnabledWhen}
			}
			pipes = append(pipes, p)
		}
		steps = append(steps, &step.Step{Name: sd.Name, Pipes: pipes})
	}

	return containers, steps, nil
}
