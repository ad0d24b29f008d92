// Package pregistry is the central, string-keyed registry of Container
// types and Pipe types a pipeline description resolves against when
// loaded (spec §9 "Registration is by string name in a central registry
// keyed on load"). Its shape mirrors the teacher's internal/registry,
// which keeps a flat, RWMutex-guarded map from canonical name to pluggable
// implementation with no built-ins baked in.
package pregistry

import (
	"fmt"
	"sync"

	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/pipe"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/rank"
)

// ContainerFactory builds a new, empty Container instance named name.
type ContainerFactory func(name string) container.Container

// PipeFactory builds a new Pipe instance bound to usedContainers and,
// for LLVM-like compound pipes, an ordered list of inner pass names.
type PipeFactory func(usedContainers []string, passes []string) (pipe.Pipe, error)

// Registry is the run's registry of Container and Pipe type constructors,
// plus the Kind and Rank registries every type is defined against.
type Registry struct {
	mu         sync.RWMutex
	containers map[string]ContainerFactory
	pipes      map[string]PipeFactory

	Kinds *kind.Registry
	Ranks *rank.Registry
}

// New creates an empty Registry with no built-in Container or Pipe types.
func New(kinds *kind.Registry, ranks *rank.Registry) *Registry {
	return &Registry{
		containers: make(map[string]ContainerFactory),
		pipes:      make(map[string]PipeFactory),
		Kinds:      kinds,
		Ranks:      ranks,
	}
}

// RegisterContainerType adds a Container type under typeName. Re-registering
// an existing type name is an error, keeping registration append-only
// within a run.
func (r *Registry) RegisterContainerType(typeName string, factory ContainerFactory) error {
	if typeName == "" || factory == nil {
		return fmt.Errorf("container type registration requires a name and factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.containers[typeName]; exists {
		return fmt.Errorf("container type %q already registered", typeName)
	}
	r.containers[typeName] = factory
	return nil
}

// RegisterPipeType adds a Pipe type under typeName.
func (r *Registry) RegisterPipeType(typeName string, factory PipeFactory) error {
	if typeName == "" || factory == nil {
		return fmt.Errorf("pipe type registration requires a name and factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.pipes[typeName]; exists {
		return fmt.Errorf("pipe type %q already registered", typeName)
	}
	r.pipes[typeName] = factory
	return nil
}

// NewContainer instantiates a Container of the registered typeName under
// instanceName, failing with UnknownContainer if typeName was never
// registered.
func (r *Registry) NewContainer(typeName, instanceName string) (container.Container, error) {
	r.mu.RLock()
	factory, ok := r.containers[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, pipelineerr.New(pipelineerr.UnknownContainer, fmt.Sprintf("unknown container type %q", typeName))
	}
	return factory(instanceName), nil
}

// NewPipe instantiates a Pipe of the registered typeName, failing with
// UnknownPipe if typeName was never registered.
func (r *Registry) NewPipe(typeName string, usedContainers []string, passes []string) (pipe.Pipe, error) {
	r.mu.RLock()
	factory, ok := r.pipes[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, pipelineerr.New(pipelineerr.UnknownPipe, fmt.Sprintf("unknown pipe type %q", typeName))
	}
	p, err := factory(usedContainers, passes)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.UnknownPipe, fmt.Sprintf("constructing pipe %q", typeName), err)
	}
	return p, nil
}

// HasContainerType reports whether typeName is registered.
func (r *Registry) HasContainerType(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.containers[typeName]
	return ok
}

// HasPipeType reports whether typeName is registered.
func (r *Registry) HasPipeType(typeName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pipes[typeName]
	return ok
}
