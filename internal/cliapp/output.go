package cliapp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oxhq/pipecore/internal/atomicio"
	"github.com/oxhq/pipecore/internal/container"
	"github.com/oxhq/pipecore/internal/pipelineerr"
	"github.com/oxhq/pipecore/internal/store"
)

// blobWriter commits result blobs to disk without leaving a torn file
// behind if the process dies mid-write.
var blobWriter = atomicio.New(atomicio.DefaultConfig())

// writeOutput writes c's contents to ospath: a single file when c holds
// exactly one concrete Target (the common case, a goal of one artifact),
// or one file per Target under ospath treated as a directory otherwise.
func writeOutput(c container.Container, ospath string) error {
	targets := c.Enumerate().Slice()
	if len(targets) == 1 {
		data, ok := c.Get(targets[0])
		if !ok {
			return pipelineerr.New(pipelineerr.UnknownContainer, "output target vanished between Enumerate and Get")
		}
		if err := os.MkdirAll(filepath.Dir(ospath), 0o755); err != nil {
			return pipelineerr.Wrap(pipelineerr.SerializationFailed, "creating output directory", err)
		}
		if err := blobWriter.WriteFile(ospath, data, 0o644); err != nil {
			return pipelineerr.Wrap(pipelineerr.SerializationFailed, "writing output", err)
		}
		return nil
	}

	if err := os.MkdirAll(ospath, 0o755); err != nil {
		return pipelineerr.Wrap(pipelineerr.SerializationFailed, "creating output directory", err)
	}
	for _, t := range targets {
		data, ok := c.Get(t)
		if !ok {
			continue
		}
		name := sanitizeFileName(t.String())
		if err := blobWriter.WriteFile(filepath.Join(ospath, name), data, 0o644); err != nil {
			return pipelineerr.Wrap(pipelineerr.SerializationFailed, fmt.Sprintf("writing output target %s", t), err)
		}
	}
	return nil
}

func sanitizeFileName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '/' || r == ':' || r == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// persistResult indexes result's concrete Targets into the -p working
// directory's SQLite store, one flat file per Target under a subdirectory
// named "goal", indexed under step name "goal" (§4.8). Persistence covers only the Targets
// actually returned to the caller — the goal Step's trimmed result — not
// every intermediate Step the Runner walked through, since Runner.Execute
// does not expose those ContainerSets once superseded.
func persistResult(workDir string, debug bool, result *container.Set) error {
	s, err := store.Open(workDir, debug)
	if err != nil {
		return err
	}
	defer s.Close()

	const stepDirName = "goal"
	dir, err := s.StepDir(stepDirName)
	if err != nil {
		return err
	}

	for _, name := range result.Names() {
		c, ok := result.Get(name)
		if !ok {
			continue
		}
		for _, t := range c.Enumerate().Slice() {
			data, ok := c.Get(t)
			if !ok {
				continue
			}
			fileName := sanitizeFileName(name + "__" + t.String())
			path := filepath.Join(dir, fileName)
			if err := blobWriter.WriteFile(path, data, 0o644); err != nil {
				return pipelineerr.Wrap(pipelineerr.SerializationFailed, fmt.Sprintf("writing persisted blob for %s", t), err)
			}
			if err := s.RecordTarget(stepDirName, name, t.String(), path, int64(len(data))); err != nil {
				return err
			}
		}
	}
	return nil
}
