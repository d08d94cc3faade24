package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunQueued   string = "QUEUED"
	RunTraining string = "TRAINING"
	RunTrained  string = "TRAINED"
	RunSkipped  string = "SKIPPED"
	RunFailed   string = "FAILED"
)

type TrainingRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Mode   string `gorm:"size:20;not null"`
	Status string `gorm:"size:20;not null"`

	Config      string
	Output      string
	Fingerprint string `gorm:"size:64"`
	ModelPath   sql.NullString
	ArtifactKey sql.NullString
	Error       sql.NullString

	// Options holds the additional training options the run was started with.
	Options datatypes.JSON

	CreationTime   time.Time
	CompletionTime sql.NullTime
}
