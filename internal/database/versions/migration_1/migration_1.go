package migration_1

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

type TrainingRun struct {
	ArtifactKey sql.NullString
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&TrainingRun{}, "ArtifactKey"); err != nil {
		return fmt.Errorf("error adding ArtifactKey column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&TrainingRun{}, "ArtifactKey"); err != nil {
		return fmt.Errorf("error dropping ArtifactKey column: %w", err)
	}

	return nil
}
