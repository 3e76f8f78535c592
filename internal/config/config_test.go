package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 2000, cfg.Chunking.WindowSize)
	assert.Equal(t, 0.15, cfg.Chunking.WindowOverlap)
	assert.Equal(t, 10, cfg.Search.MaxResults)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, Default().Embedding.Endpoint, cfg.Embedding.Endpoint)
	assert.Equal(t, filepath.Join(dir, ".semidx"), cfg.Store.DataDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
version: 1
embedding:
  endpoint: http://embed.internal:9000/v1
  dimensions: 768
  batch_size: 16
  timeout: 30s
search:
  max_results: 25
  min_similarity: 0.4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://embed.internal:9000/v1", cfg.Embedding.Endpoint)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, 0.4, cfg.Search.MinSimilarity)

	// Untouched sections keep defaults
	assert.Equal(t, Default().Chunking.WindowSize, cfg.Chunking.WindowSize)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SEMIDX_EMBED_ENDPOINT", "http://env-wins:1234/embed")
	t.Setenv("SEMIDX_CONCURRENCY", "8")
	t.Setenv("SEMIDX_OFFLINE", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://env-wins:1234/embed", cfg.Embedding.Endpoint)
	assert.Equal(t, 8, cfg.Performance.Concurrency)
	assert.True(t, cfg.Embedding.Offline)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("{{not yaml"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap too large", func(c *Config) { c.Chunking.WindowOverlap = 0.9 }},
		{"window below min chunk", func(c *Config) { c.Chunking.WindowSize = 10 }},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"negative similarity", func(c *Config) { c.Search.MinSimilarity = -0.1 }},
		{"similarity above one", func(c *Config) { c.Search.MinSimilarity = 1.5 }},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }},
		{"zero concurrency", func(c *Config) { c.Performance.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Search.MaxResults = 42
	require.NoError(t, cfg.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.MaxResults)
}
