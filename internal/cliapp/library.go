package cliapp

import (
	"fmt"
	"sync"

	"github.com/oxhq/pipecore/internal/pregistry"
)

// LibraryFunc registers a bundle of Ranks, Kinds, Container types and Pipe
// types against reg. A pipeline description cannot resolve any name a
// library hasn't registered first.
type LibraryFunc func(reg *pregistry.Registry) error

var (
	libMu    sync.RWMutex
	builtins = map[string]LibraryFunc{}
)

// RegisterLibrary adds name to the set `-l name` can load. Mirrors the
// teacher's explicit built-in factory list in
// cmd/morfx/providers.go:registerBuiltinProviders rather than true
// dynamic plugin loading, which Go's plugin package restricts to binaries
// built from a matching toolchain anyway.
func RegisterLibrary(name string, fn LibraryFunc) {
	libMu.Lock()
	defer libMu.Unlock()
	builtins[name] = fn
}

// LoadLibrary invokes the named library's registration function against
// reg, failing if name was never registered.
func LoadLibrary(name string, reg *pregistry.Registry) error {
	libMu.RLock()
	fn, ok := builtins[name]
	libMu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown library %q", name)
	}
	return fn(reg)
}
