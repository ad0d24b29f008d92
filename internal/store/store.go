// Package store is the SQLite-backed presence index over a run's -p
// working directory (§4.8): for each (step, container, target) it records
// which flat file under that Step's subdirectory holds the bytes, and a
// length for integrity checks; for each Global it records the serialized
// file backing it. The index itself is never content-addressed — a row is
// simply overwritten on each run, keyed on name, matching the teacher's
// gorm.Open/AutoMigrate connection pattern in db/sqlite.go.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/pipecore/internal/pipelineerr"
)

// Store wraps the gorm.DB backing one -p working directory, guaranteeing
// Close releases the underlying *sql.DB exactly once regardless of which
// exit path a caller takes.
type Store struct {
	mu     sync.Mutex
	db     *gorm.DB
	dir    string
	closed bool
}

// Open connects to (creating if absent) the SQLite index file under dir
// and runs migrations. dir is created if it does not already exist.
func Open(dir string, debug bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SerializationFailed, "creating working directory", err)
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = logger.Default.LogMode(logger.Info)
	} else {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	dsn := filepath.Join(dir, "index.db")
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SerializationFailed, "opening persistence index", err)
	}
	if err := db.AutoMigrate(&TargetRecord{}, &GlobalRecord{}); err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.SerializationFailed, "migrating persistence index", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// Dir returns the working directory this Store indexes.
func (s *Store) Dir() string { return s.dir }

// StepDir returns the subdirectory holding stepName's flat files, creating
// it if necessary.
func (s *Store) StepDir(stepName string) (string, error) {
	dir := filepath.Join(s.dir, stepName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", pipelineerr.Wrap(pipelineerr.SerializationFailed, fmt.Sprintf("creating step directory %q", stepName), err)
	}
	return dir, nil
}

// RecordTarget upserts the index row for (step, container, target),
// overwriting whatever blobPath/length it previously held.
func (s *Store) RecordTarget(step, container, target, blobPath string, length int64) error {
	rec := TargetRecord{Step: step, Container: container, Target: target, BlobPath: blobPath, Length: length}
	err := s.db.Where(TargetRecord{Step: step, Container: container, Target: target}).
		Assign(TargetRecord{BlobPath: blobPath, Length: length}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.SerializationFailed, "indexing target record", err)
	}
	return nil
}

// LookupTarget returns the indexed record for (step, container, target),
// or ok=false if nothing is indexed there.
func (s *Store) LookupTarget(step, container, target string) (rec TargetRecord, ok bool, err error) {
	result := s.db.Where("step = ? AND container = ? AND target = ?", step, container, target).First(&rec)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return TargetRecord{}, false, nil
		}
		return TargetRecord{}, false, pipelineerr.Wrap(pipelineerr.DeserializationFailed, "looking up target record", result.Error)
	}
	return rec, true, nil
}

// ListStepTargets returns every record indexed for stepName, across all
// its containers.
func (s *Store) ListStepTargets(step string) ([]TargetRecord, error) {
	var recs []TargetRecord
	if err := s.db.Where("step = ?", step).Find(&recs).Error; err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.DeserializationFailed, "listing step targets", err)
	}
	return recs, nil
}

// RemoveTarget deletes the index row for (step, container, target), if
// any, so a caller that discards a Target's bytes can keep the index from
// claiming stale presence. The Invalidator does not call it.
func (s *Store) RemoveTarget(step, container, target string) error {
	err := s.db.Where("step = ? AND container = ? AND target = ?", step, container, target).
		Delete(&TargetRecord{}).Error
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.SerializationFailed, "removing target record", err)
	}
	return nil
}

// RecordGlobal upserts the index row for a Global's serialized file.
func (s *Store) RecordGlobal(name, filePath string) error {
	rec := GlobalRecord{Name: name, FilePath: filePath}
	err := s.db.Where(GlobalRecord{Name: name}).
		Assign(GlobalRecord{FilePath: filePath}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.SerializationFailed, "indexing global record", err)
	}
	return nil
}

// LookupGlobal returns the indexed record for a Global by name, or
// ok=false if it has never been persisted.
func (s *Store) LookupGlobal(name string) (rec GlobalRecord, ok bool, err error) {
	result := s.db.Where("name = ?", name).First(&rec)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return GlobalRecord{}, false, nil
		}
		return GlobalRecord{}, false, pipelineerr.Wrap(pipelineerr.DeserializationFailed, "looking up global record", result.Error)
	}
	return rec, true, nil
}

// Close releases the underlying database connection. It is idempotent
// and safe to call more than once or via defer along every exit path.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return pipelineerr.Wrap(pipelineerr.SerializationFailed, "retrieving underlying connection", err)
	}
	return sqlDB.Close()
}
