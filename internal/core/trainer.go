package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"chatbot-trainer/internal/core/utils"
	"chatbot-trainer/internal/database"
	"chatbot-trainer/internal/storage"
	"chatbot-trainer/internal/train"
	"chatbot-trainer/plugin/shared"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Trainer trains single models through a Backend and publishes the results.
// DB, Store and OutputLocks are optional.
type Trainer struct {
	Backend shared.Backend
	DB      *gorm.DB
	Store   storage.ObjectStore
	Bucket  string

	// OutputLocks serializes access to an output directory between concurrent
	// trainings.
	OutputLocks *utils.MutexMap
}

var _ train.Trainer = (*Trainer)(nil)

func (t *Trainer) TrainCombined(ctx context.Context, req train.CombinedRequest) (string, error) {
	runId := t.startRun(ctx, train.ModeCombined, req.Config, req.Output)

	fingerprint, err := ComputeFingerprint(req.Domain, req.Config, req.TrainingFiles)
	if err != nil {
		t.failRun(ctx, runId, err)
		return "", err
	}

	if !req.ForceTraining {
		existing, ok, err := t.unchangedModel(req.Output, fingerprint)
		if err != nil {
			t.failRun(ctx, runId, err)
			return "", err
		}
		if ok {
			slog.Info("nothing changed, reusing existing model", "model", existing)
			t.updateRun(ctx, runId, database.RunSkipped, database.RunUpdate{Fingerprint: fingerprint.Digest(), ModelPath: existing})
			return existing, nil
		}
	}

	trainDir, err := os.MkdirTemp("", "train-*")
	if err != nil {
		err = fmt.Errorf("error creating scratch directory: %w", err)
		t.failRun(ctx, runId, err)
		return "", err
	}
	defer os.RemoveAll(trainDir)

	job := shared.TrainJob{
		Kind:          shared.JobCombined,
		Domain:        req.Domain,
		Config:        req.Config,
		TrainingFiles: req.TrainingFiles,
		OutputDir:     trainDir,
	}
	setOptions(&job, req.Options)

	return t.trainAndPackage(ctx, runId, job, fingerprint, req.Output, req.FixedModelName, req.Uncompress)
}

func (t *Trainer) TrainCore(ctx context.Context, req train.CoreRequest) (string, error) {
	runId := t.startRun(ctx, train.ModeCore, req.Config, req.Output)

	inPlace := req.TrainPath != "" && samePath(req.TrainPath, req.Output)
	if req.TrainPath != "" && !inPlace {
		defer os.RemoveAll(req.TrainPath)
	}

	var stories []string
	if req.Stories != "" {
		stories = []string{req.Stories}
	}
	fingerprint, err := ComputeFingerprint(req.Domain, req.Config, stories)
	if err != nil {
		t.failRun(ctx, runId, err)
		return "", err
	}

	job := shared.TrainJob{
		Kind:                shared.JobCore,
		Domain:              req.Domain,
		Config:              req.Config,
		TrainingFiles:       stories,
		OutputDir:           req.TrainPath,
		ExclusionPercentage: req.ExclusionPercentage,
	}
	setOptions(&job, req.Options)

	if inPlace {
		return t.trainInPlace(ctx, runId, job, fingerprint)
	}

	if job.OutputDir == "" {
		job.OutputDir, err = os.MkdirTemp("", "core-train-*")
		if err != nil {
			err = fmt.Errorf("error creating scratch directory: %w", err)
			t.failRun(ctx, runId, err)
			return "", err
		}
		defer os.RemoveAll(job.OutputDir)
	}
	return t.trainAndPackage(ctx, runId, job, fingerprint, req.Output, req.FixedModelName, req.Uncompress)
}

func (t *Trainer) TrainNlu(ctx context.Context, req train.NluRequest) (string, error) {
	runId := t.startRun(ctx, train.ModeNlu, req.Config, req.Output)

	inPlace := req.TrainPath != "" && samePath(req.TrainPath, req.Output)
	if req.TrainPath != "" && !inPlace {
		defer os.RemoveAll(req.TrainPath)
	}

	var nluData []string
	if req.NluData != "" {
		nluData = []string{req.NluData}
	}
	fingerprint, err := ComputeFingerprint("", req.Config, nluData)
	if err != nil {
		t.failRun(ctx, runId, err)
		return "", err
	}

	job := shared.TrainJob{
		Kind:          shared.JobNlu,
		Config:        req.Config,
		TrainingFiles: nluData,
		OutputDir:     req.TrainPath,
	}

	if inPlace {
		return t.trainInPlace(ctx, runId, job, fingerprint)
	}

	if job.OutputDir == "" {
		job.OutputDir, err = os.MkdirTemp("", "nlu-train-*")
		if err != nil {
			err = fmt.Errorf("error creating scratch directory: %w", err)
			t.failRun(ctx, runId, err)
			return "", err
		}
		defer os.RemoveAll(job.OutputDir)
	}

	return t.trainAndPackage(ctx, runId, job, fingerprint, req.Output, req.FixedModelName, req.Uncompress)
}

// trainInPlace trains into job.OutputDir and leaves the model unpacked there.
func (t *Trainer) trainInPlace(ctx context.Context, runId uuid.UUID, job shared.TrainJob, fingerprint Fingerprint) (string, error) {
	if err := t.train(ctx, runId, job, fingerprint); err != nil {
		return "", err
	}
	t.finishRun(ctx, runId, fingerprint, job.OutputDir)
	return job.OutputDir, nil
}

func (t *Trainer) trainAndPackage(ctx context.Context, runId uuid.UUID, job shared.TrainJob, fingerprint Fingerprint, output, fixedName string, uncompressed bool) (string, error) {
	if err := t.train(ctx, runId, job, fingerprint); err != nil {
		return "", err
	}

	unlock, err := t.lockOutput(output)
	if err != nil {
		t.failRun(ctx, runId, err)
		return "", err
	}
	modelPath, err := PackageModel(job.OutputDir, output, fixedName, uncompressed)
	unlock()
	if err != nil {
		t.failRun(ctx, runId, err)
		return "", err
	}

	slog.Info("model trained", "kind", job.Kind, "model", modelPath)
	t.finishRun(ctx, runId, fingerprint, modelPath)
	return modelPath, nil
}

func (t *Trainer) train(ctx context.Context, runId uuid.UUID, job shared.TrainJob, fingerprint Fingerprint) error {
	if err := ctx.Err(); err != nil {
		t.failRun(ctx, runId, err)
		return err
	}

	if err := os.MkdirAll(job.OutputDir, os.ModePerm); err != nil {
		err = fmt.Errorf("error creating train directory %s: %w", job.OutputDir, err)
		t.failRun(ctx, runId, err)
		return err
	}

	t.updateRun(ctx, runId, database.RunTraining, database.RunUpdate{Options: jobOptions(job)})

	slog.Info("training model", "kind", job.Kind, "config", job.Config, "train_dir", job.OutputDir)
	result, err := t.Backend.Train(job)
	if err != nil {
		err = fmt.Errorf("error training %s model: %w", job.Kind, err)
		t.failRun(ctx, runId, err)
		return err
	}
	slog.Debug("backend finished", "kind", job.Kind, "files", len(result.Files))

	if err := writeFingerprint(job.OutputDir, fingerprint); err != nil {
		t.failRun(ctx, runId, err)
		return err
	}
	return nil
}

// unchangedModel returns the newest model in dir if it was trained from the
// same inputs.
func (t *Trainer) unchangedModel(dir string, fingerprint Fingerprint) (string, bool, error) {
	unlock, err := t.lockOutput(dir)
	if err != nil {
		return "", false, err
	}
	defer unlock()

	latest, err := LatestModel(dir)
	if err != nil || latest == "" {
		return "", false, nil
	}

	old, err := ReadFingerprint(latest)
	if err != nil {
		slog.Warn("unable to read fingerprint of existing model, retraining", "model", latest, "error", err)
		return "", false, nil
	}

	if changed := fingerprint.Changed(old); len(changed) > 0 {
		slog.Info("training inputs changed", "model", latest, "changed", changed)
		return "", false, nil
	}
	return latest, true, nil
}

func (t *Trainer) lockOutput(dir string) (func(), error) {
	if t.OutputLocks == nil {
		return func() {}, nil
	}

	key, err := filepath.Abs(dir)
	if err != nil {
		key = filepath.Clean(dir)
	}
	if err := t.OutputLocks.Lock(key); err != nil {
		return nil, fmt.Errorf("error locking output directory %s: %w", dir, err)
	}
	return func() {
		if err := t.OutputLocks.Unlock(key); err != nil {
			slog.Error("error unlocking output directory", "dir", dir, "error", err)
		}
	}, nil
}

func (t *Trainer) upload(ctx context.Context, runId uuid.UUID, modelPath string) string {
	if t.Store == nil {
		return ""
	}

	key := path.Join("models", runId.String(), filepath.Base(modelPath))

	info, err := os.Stat(modelPath)
	if err != nil {
		slog.Warn("unable to stat model for upload", "model", modelPath, "error", err)
		return ""
	}

	if info.IsDir() {
		err = t.Store.UploadDir(ctx, t.Bucket, key, modelPath)
	} else {
		err = t.putFile(ctx, key, modelPath)
	}
	if err != nil {
		slog.Warn("error uploading model", "model", modelPath, "bucket", t.Bucket, "key", key, "error", err)
		return ""
	}

	slog.Info("model uploaded", "bucket", t.Bucket, "key", key)
	return key
}

func (t *Trainer) putFile(ctx context.Context, key, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	return t.Store.PutObject(ctx, t.Bucket, key, file)
}

func (t *Trainer) startRun(ctx context.Context, mode train.Mode, config, output string) uuid.UUID {
	if t.DB == nil {
		return uuid.New()
	}
	runId, err := database.CreateRun(ctx, t.DB, string(mode), config, output)
	if err != nil {
		slog.Warn("unable to record training run", "error", err)
		return uuid.New()
	}
	return runId
}

func (t *Trainer) finishRun(ctx context.Context, runId uuid.UUID, fingerprint Fingerprint, modelPath string) {
	key := t.upload(ctx, runId, modelPath)
	t.updateRun(ctx, runId, database.RunTrained, database.RunUpdate{
		Fingerprint: fingerprint.Digest(),
		ModelPath:   modelPath,
		ArtifactKey: key,
	})
}

func (t *Trainer) failRun(ctx context.Context, runId uuid.UUID, err error) {
	t.updateRun(context.WithoutCancel(ctx), runId, database.RunFailed, database.RunUpdate{Err: err})
}

func (t *Trainer) updateRun(ctx context.Context, runId uuid.UUID, status string, update database.RunUpdate) {
	if t.DB == nil {
		return
	}
	// UpdateRunStatus logs its own failures.
	_ = database.UpdateRunStatus(ctx, t.DB, runId, status, update)
}

func setOptions(job *shared.TrainJob, options train.AdditionalOptions) {
	job.AugmentationFactor = options.AugmentationFactor
	job.DumpStories = options.DumpStories
	job.DebugPlots = options.DebugPlots
}

func jobOptions(job shared.TrainJob) map[string]any {
	options := train.AdditionalOptions{
		AugmentationFactor: job.AugmentationFactor,
		DumpStories:        job.DumpStories,
		DebugPlots:         job.DebugPlots,
	}.Map()
	if job.ExclusionPercentage > 0 {
		options["exclusion_percentage"] = job.ExclusionPercentage
	}
	return options
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
