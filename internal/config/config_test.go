package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoadFromDirUsesDefaultsWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, Default().Index.Extensions, cfg.Index.Extensions)
	assert.Equal(t, ".gildash", cfg.Storage.DataDir)
	assert.True(t, cfg.Watch.Enabled)
}

func TestLoadFromDirReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".gildash"), 0o755))
	yaml := `
index:
  extensions: [".go"]
  parse_cache_capacity: 50
watch:
  enabled: false
storage:
  data_dir: ".cache"
  db_file: "idx.db"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gildash", "config.yml"), []byte(yaml), 0o644))

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".go"}, cfg.Index.Extensions)
	assert.Equal(t, 50, cfg.Index.ParseCacheCapacity)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, ".cache", cfg.Storage.DataDir)
	assert.Equal(t, "idx.db", cfg.Storage.DBFile)
}

func TestValidateRejectsExtensionMissingDot(t *testing.T) {
	cfg := Default()
	cfg.Index.Extensions = []string{"ts"}
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidExtension)
}

func TestValidateRejectsNonPositiveCacheCapacity(t *testing.T) {
	cfg := Default()
	cfg.Index.ParseCacheCapacity = 0
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCacheCapacity)
}

func TestValidateRejectsEmptyStoragePaths(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = ""
	cfg.Storage.DBFile = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")
	assert.Contains(t, err.Error(), "db_file")
}

func TestToGildashConfigMapsFields(t *testing.T) {
	cfg := Default()
	gc := ToGildashConfig("/proj", cfg, nil)
	assert.Equal(t, "/proj", gc.ProjectRoot)
	assert.Equal(t, cfg.Storage.DataDir, gc.DataDir)
	assert.Equal(t, cfg.Storage.DBFile, gc.DBFile)
	assert.Equal(t, cfg.Index.Extensions, gc.Extensions)
	assert.Equal(t, cfg.Index.ParseCacheCapacity, gc.ParseCacheCapacity)
	assert.Equal(t, cfg.Watch.Enabled, gc.WatchMode)
}
