package migration_2

import (
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TrainingRun struct {
	Options datatypes.JSON
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&TrainingRun{}, "Options"); err != nil {
		return fmt.Errorf("error adding Options column: %w", err)
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&TrainingRun{}, "Options"); err != nil {
		return fmt.Errorf("error dropping Options column: %w", err)
	}

	return nil
}
