package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TrainingRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Mode   string `gorm:"size:20;not null"`
	Status string `gorm:"size:20;not null"`

	Config      string
	Output      string
	Fingerprint string `gorm:"size:64"`
	ModelPath   sql.NullString
	Error       sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&TrainingRun{}); err != nil {
		return fmt.Errorf("error creating training_runs table: %w", err)
	}
	return nil
}
