package cliapp

import (
	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/pipes"
	"github.com/oxhq/pipecore/internal/pregistry"
)

func init() {
	RegisterLibrary("core", registerCoreLibrary)
}

// registerCoreLibrary wires the one Rank/Kind family and Container/Pipe
// type set that ships with the CLI itself: a single Root-rank Kind named
// "Bytes" for opaque artifacts, a generic Blob Container type, and the
// CopyPipe and LLVMPipe shapes of package pipes. pipes.ConstPipe is not
// registered here, so a pipeline description cannot name it. A real deployment
// names richer families (Binary/Function/BasicBlock, LLVMContainer, ...)
// through its own library, loaded the same way via `-l`.
func registerCoreLibrary(reg *pregistry.Registry) error {
	root, err := reg.Ranks.RegisterRoot("Root")
	if err != nil {
		return err
	}
	bytesKind, err := reg.Kinds.Register("Bytes", root, "")
	if err != nil {
		return err
	}

	if err := reg.RegisterContainerType("Blob", func(name string) container.Container {
		return container.NewBlob(name, "Blob", bytesKind)
	}); err != nil {
		return err
	}

	if err := reg.RegisterPipeType("CopyPipe", pipes.NewCopyPipe(bytesKind)); err != nil {
		return err
	}
	if err := reg.RegisterPipeType("LLVMPipe", pipes.NewLLVMPipe(bytesKind)); err != nil {
		return err
	}
	return nil
}
