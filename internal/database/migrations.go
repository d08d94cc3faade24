package database

import (
	"log/slog"

	"chatbot-trainer/internal/database/versions/migration_0"
	"chatbot-trainer/internal/database/versions/migration_1"
	"chatbot-trainer/internal/database/versions/migration_2"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:      "0",
			Migrate: migration_0.Migration,
		},
		{
			ID:       "1",
			Migrate:  migration_1.Migration,
			Rollback: migration_1.Rollback,
		},
		{
			ID:       "2",
			Migrate:  migration_2.Migration,
			Rollback: migration_2.Rollback,
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// Fresh databases get the current schema directly.
		slog.Info("clean database detected, running full schema initialization")

		return txn.AutoMigrate(&TrainingRun{})
	})

	return migrator
}
