package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"chatbot-trainer/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"TRAINER_BACKEND_CMD", "TRAINER_REGISTRY_DSN", "CONCURRENCY", "COMPARE_CONCURRENCY", "MODEL_STORE_DIR", "S3_ENDPOINT_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Empty(t, cfg.BackendCmd)
	assert.Equal(t, ".trainer/registry.db", cfg.RegistryDSN)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.Equal(t, 2, cfg.CompareConcurrency)
	assert.Equal(t, "trained-models", cfg.ModelBucketName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.StoreEnabled())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	for _, key := range []string{"TRAINER_BACKEND_CMD", "CONCURRENCY", "MODEL_STORE_DIR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRAINER_BACKEND_CMD=python3 backend.py --gpu\nCONCURRENCY=4\nMODEL_STORE_DIR=/tmp/store\n"), 0644))

	require.NoError(t, config.LoadEnvFile(path))

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"python3", "backend.py", "--gpu"}, cfg.BackendCmd)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.True(t, cfg.StoreEnabled())
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("CONCURRENCY", "many")

	_, err := config.LoadConfig()
	assert.Error(t, err)
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.NoError(t, config.LoadEnvFile(""))
	assert.Error(t, config.LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestParseLogLevel(t *testing.T) {
	level, err := config.ParseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = config.ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = config.ParseLogLevel("loud")
	assert.Error(t, err)
}
