package store

import "time"

// TargetRecord indexes one persisted (step, container, target) triple: the
// flat file under the Step's subdirectory that holds its bytes, and a
// length for integrity checks (§4.8). The index key is the Target's own
// name, never a content hash — this is a presence index, not a cache.
type TargetRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Step      string `gorm:"type:varchar(255);uniqueIndex:idx_target_key"`
	Container string `gorm:"type:varchar(255);uniqueIndex:idx_target_key"`
	Target    string `gorm:"type:varchar(1024);uniqueIndex:idx_target_key"`

	BlobPath string `gorm:"type:text;not null"`
	Length   int64  `gorm:"not null"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (TargetRecord) TableName() string { return "target_records" }

// GlobalRecord indexes the serialized file backing one registered Global,
// by its registered name.
type GlobalRecord struct {
	Name     string `gorm:"primaryKey;type:varchar(255)"`
	FilePath string `gorm:"type:text;not null"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (GlobalRecord) TableName() string { return "global_records" }
