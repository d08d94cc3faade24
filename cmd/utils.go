package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"chatbot-trainer/internal/config"
	"chatbot-trainer/internal/core"
	"chatbot-trainer/internal/core/utils"
	"chatbot-trainer/internal/database"
	"chatbot-trainer/internal/messaging"
	"chatbot-trainer/internal/storage"
	"chatbot-trainer/internal/train"

	"gorm.io/gorm"
)

const maxLockedOutputs = 1024

func OpenRegistry(cfg *config.Config) (*gorm.DB, error) {
	if cfg.RegistryDSN == "" {
		return nil, nil
	}
	db, err := database.NewDatabase(cfg.RegistryDSN)
	if err != nil {
		return nil, fmt.Errorf("error opening run registry: %w", err)
	}
	return db, nil
}

// CreateObjectStore returns the artifact store configured by cfg, or nil when
// models are not published. S3 takes precedence over a local store directory.
func CreateObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, error) {
	if !cfg.StoreEnabled() {
		return nil, nil
	}

	var store storage.ObjectStore
	if cfg.S3EndpointURL != "" {
		s3Store, err := storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		store = s3Store
	} else {
		localStore, err := storage.NewLocalObjectStore(cfg.ModelStoreDir)
		if err != nil {
			return nil, err
		}
		store = localStore
	}

	if err := store.CreateBucket(ctx, cfg.ModelBucketName); err != nil {
		return nil, err
	}
	return store, nil
}

func LoadBackend(cfg *config.Config) (*core.PluginBackend, error) {
	if len(cfg.BackendCmd) == 0 {
		return nil, fmt.Errorf("no training backend configured, set TRAINER_BACKEND_CMD")
	}
	slog.Debug("starting training backend", "cmd", cfg.BackendCmd)
	return core.LoadPluginBackend(cfg.BackendCmd[0], cfg.BackendCmd[1:]...)
}

// CreateDispatcher wires a dispatcher to the configured backend, registry and
// artifact store. The returned function releases the backend.
func CreateDispatcher(ctx context.Context, cfg *config.Config) (*train.Dispatcher, func(), error) {
	db, err := OpenRegistry(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := CreateObjectStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating artifact store: %w", err)
	}

	backend, err := LoadBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	trainer := &core.Trainer{
		Backend: backend,
		DB:      db,
		Store:   store,
		Bucket:  cfg.ModelBucketName,

		OutputLocks: utils.NewMutexMap(maxLockedOutputs),
	}
	compare := &core.CompareTrainer{
		Trainer:        trainer,
		Concurrency:    cfg.CompareConcurrency,
		ProgressOutput: progressOutput(),
	}

	return train.NewDispatcher(trainer, compare), backend.Release, nil
}

func CreatePublisher(cfg *config.Config) (messaging.Publisher, error) {
	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return publisher, nil
}

func CreateReceiver(cfg *config.Config) (messaging.Reciever, error) {
	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	return receiver, nil
}
