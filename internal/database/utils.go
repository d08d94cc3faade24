package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func CreateRun(ctx context.Context, db *gorm.DB, mode, config, output string) (uuid.UUID, error) {
	run := TrainingRun{
		Id:           uuid.New(),
		Mode:         mode,
		Status:       RunQueued,
		Config:       config,
		Output:       output,
		CreationTime: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to create training run: %w", err)
	}
	return run.Id, nil
}

// RunUpdate holds the optional fields written with a status change.
type RunUpdate struct {
	Fingerprint string
	ModelPath   string
	ArtifactKey string
	Options     map[string]any
	Err         error
}

func UpdateRunStatus(ctx context.Context, db *gorm.DB, runId uuid.UUID, status string, update RunUpdate) error {
	updates := map[string]any{"status": status}
	if status == RunTrained || status == RunSkipped || status == RunFailed {
		updates["completion_time"] = time.Now().UTC()
	}
	if update.Fingerprint != "" {
		updates["fingerprint"] = update.Fingerprint
	}
	if update.ModelPath != "" {
		updates["model_path"] = sql.NullString{String: update.ModelPath, Valid: true}
	}
	if update.ArtifactKey != "" {
		updates["artifact_key"] = sql.NullString{String: update.ArtifactKey, Valid: true}
	}
	if len(update.Options) > 0 {
		options, err := json.Marshal(update.Options)
		if err != nil {
			return fmt.Errorf("error encoding run options: %w", err)
		}
		updates["options"] = datatypes.JSON(options)
	}
	if update.Err != nil {
		updates["error"] = sql.NullString{String: update.Err.Error(), Valid: true}
	}

	if err := db.WithContext(ctx).Model(&TrainingRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating training run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func ListRuns(ctx context.Context, db *gorm.DB, limit int) ([]TrainingRun, error) {
	var runs []TrainingRun
	query := db.WithContext(ctx).Order("creation_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("could not list training runs: %w", err)
	}
	return runs, nil
}
