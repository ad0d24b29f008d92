package container

import (
	"fmt"
	"sync"

	"github.com/oxhq/pipecore/internal/kind"
	"github.com/oxhq/pipecore/internal/target"
)

// BlobContainer is the one general-purpose Container implementation: a
// named, typed map from Target to opaque bytes. Every Container type
// listed in a pipeline description (LLVMContainer, Binary, StringContainer,
// Object, Translated, ...) is a BlobContainer configured with a different
// accepted-Kind set and registered under a different type name - the core
// never needs to know more about a container's payload than "does it hold
// this Kind".
type BlobContainer struct {
	mu       sync.RWMutex
	name     string
	typeName string
	accepted map[string]*kind.Kind // kind name -> kind
	data     map[string][]byte     // target.String() -> bytes
	targets  map[string]target.Target
	closed   bool
}

// NewBlob creates a BlobContainer named name of the given registered type,
// accepting exactly the listed Kinds.
func NewBlob(name, typeName string, accepted ...*kind.Kind) *BlobContainer {
	m := make(map[string]*kind.Kind, len(accepted))
	for _, k := range accepted {
		m[k.Name()] = k
	}
	return &BlobContainer{
		name:     name,
		typeName: typeName,
		accepted: m,
		data:     make(map[string][]byte),
		targets:  make(map[string]target.Target),
	}
}

func (b *BlobContainer) Name() string { return b.name }
func (b *BlobContainer) Type() string { return b.typeName }

func (b *BlobContainer) AcceptsKind(k *kind.Kind) bool {
	if k == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, accepted := range b.accepted {
		if k.Matches(accepted) {
			return true
		}
	}
	return false
}

func (b *BlobContainer) Kinds() []*kind.Kind {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*kind.Kind, 0, len(b.accepted))
	for _, k := range b.accepted {
		out = append(out, k)
	}
	return out
}

func (b *BlobContainer) Enumerate() *target.Set {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := target.NewSet()
	for _, t := range b.targets {
		s.Add(t)
	}
	return s
}

func (b *BlobContainer) Contains(t target.Target) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[t.String()]
	return ok
}

func (b *BlobContainer) Remove(ts *target.Set) {
	if ts == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range ts.Slice() {
		key := t.String()
		delete(b.data, key)
		delete(b.targets, key)
	}
}

func (b *BlobContainer) Merge(other Container) error {
	o, ok := other.(*BlobContainer)
	if !ok {
		return fmt.Errorf("container %q: cannot merge container of differing implementation", b.name)
	}
	if o.typeName != b.typeName {
		return fmt.Errorf("container %q: cannot merge type %q into type %q", b.name, o.typeName, b.typeName)
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, t := range o.targets {
		// Later-wins for concrete overwrites, per §9 Open Question.
		b.targets[key] = t
		b.data[key] = o.data[key]
	}
	return nil
}

func (b *BlobContainer) Get(t target.Target) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.data[t.String()]
	return data, ok
}

func (b *BlobContainer) Put(t target.Target, data []byte) error {
	if !t.Concrete() {
		return fmt.Errorf("container %q: cannot store non-concrete target %s", b.name, t)
	}
	if !b.AcceptsKind(t.Kind) {
		return fmt.Errorf("container %q: does not accept kind %q", b.name, t.Kind.Name())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	key := t.String()
	b.targets[key] = t
	cp := make([]byte, len(data))
	copy(cp, data)
	b.data[key] = cp
	return nil
}

func (b *BlobContainer) Clone() Container {
	b.mu.RLock()
	defer b.mu.RUnlock()

	accepted := make(map[string]*kind.Kind, len(b.accepted))
	for n, k := range b.accepted {
		accepted[n] = k
	}
	data := make(map[string][]byte, len(b.data))
	for k, v := range b.data {
		cp := make([]byte, len(v))
		copy(cp, v)
		data[k] = cp
	}
	targets := make(map[string]target.Target, len(b.targets))
	for k, v := range b.targets {
		targets[k] = v
	}

	return &BlobContainer{
		name:     b.name,
		typeName: b.typeName,
		accepted: accepted,
		data:     data,
		targets:  targets,
	}
}

// Close releases the Container's in-memory contents. BlobContainer holds
// no file handles, but Close is idempotent and always safe to call,
// matching the Scoped Resources guarantee every Container type must honor
// even when (as here) there is nothing to release.
func (b *BlobContainer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.data = nil
	b.targets = nil
	return nil
}
