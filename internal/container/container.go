// Package container implements the typed artifact store a Step operates
// over. A Container holds the bytes for every Target of a Kind it accepts;
// the core never looks inside those bytes — that is the analysis Pipe's
// business — it only tracks identity and existence, the same separation
// the teacher draws between internal/registry (identity, lookup) and the
// opaque provider.LanguageProvider payload it stores.
package container

import "github.com/oxhq/pipecore/internal/target"
import "github.com/oxhq/pipecore/internal/kind"

// Container is the capability interface every concrete artifact store
// implements: enumerate/contains/remove/merge plus opaque byte access for
// Pipes.
type Container interface {
	// Name is this Container instance's identity within a ContainerSet
	// (e.g. "module.ll", "input").
	Name() string

	// Type is the registered Container type name (e.g. "LLVMContainer",
	// "Binary", "StringContainer").
	Type() string

	// AcceptsKind reports whether k is, or descends from, one of the Kinds
	// this Container type was declared to hold.
	AcceptsKind(k *kind.Kind) bool

	// Kinds returns every Kind this Container type was declared to hold,
	// used by the CLI layer to resolve a Target's Kind from a binding
	// that names only a Container (§6 "-i"/"-o" bindings carry no Kind
	// of their own).
	Kinds() []*kind.Kind

	// Enumerate returns every concrete Target currently present.
	Enumerate() *target.Set

	// Contains reports whether the concrete Target t is present.
	Contains(t target.Target) bool

	// Remove deletes every Target in ts that is present, discarding its
	// bytes. Removing an absent Target is a no-op.
	Remove(ts *target.Set)

	// Merge folds other's contents into this Container: other must be of
	// the same Type. Concrete collisions are later-wins (§9 Open
	// Question); Merge itself does not log them.
	Merge(other Container) error

	// Get returns the bytes stored for the concrete Target t.
	Get(t target.Target) ([]byte, bool)

	// Put stores data under the concrete Target t. The Kind of t must be
	// accepted by this Container.
	Put(t target.Target, data []byte) error

	// Clone returns a deep, independent copy of this Container, used when
	// the Runner hands a Step's output forward as the next Step's input
	// (§4.5, §5 "Containers are not shared across Steps in place").
	Clone() Container

	// Close releases any scarce resources (open files, handles) the
	// Container holds, unconditionally and idempotently.
	Close() error
}
