package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: acme\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Namespace)
	assert.Equal(t, "default", cfg.Database)
	assert.Equal(t, StorageMemory, cfg.Storage.Kind)
	assert.Equal(t, 1024, cfg.Exec.OrderedBatchSize)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsBoltWithoutPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Kind = StorageBolt
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStorageKind(t *testing.T) {
	cfg := Default()
	cfg.Storage.Kind = "weird"
	assert.Error(t, cfg.Validate())
}

func TestOpenStorageMemory(t *testing.T) {
	cfg := Default()
	store, err := cfg.OpenStorage()
	require.NoError(t, err)
	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	assert.NoError(t, tx.Cancel())
}

func TestOpenStorageBolt(t *testing.T) {
	cfg := Default()
	cfg.Storage.Kind = StorageBolt
	cfg.Storage.Path = filepath.Join(t.TempDir(), "engine.db")

	store, err := cfg.OpenStorage()
	require.NoError(t, err)
	defer store.Close()

	tx, err := store.Begin(context.Background(), true)
	require.NoError(t, err)
	assert.NoError(t, tx.Cancel())
}
