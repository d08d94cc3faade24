package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"chatbot-trainer/internal/config"
	"chatbot-trainer/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateObjectStoreDisabled(t *testing.T) {
	store, err := CreateObjectStore(context.Background(), &config.Config{ModelBucketName: "trained-models"})
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestCreateObjectStoreLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{ModelStoreDir: dir, ModelBucketName: "trained-models"}

	store, err := CreateObjectStore(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.IsType(t, &storage.LocalObjectStore{}, store)
	assert.DirExists(t, filepath.Join(dir, "trained-models"))
}
