// Package config loads and validates semidx configuration.
//
// Configuration is resolved in three layers, later layers winning:
//  1. Built-in defaults
//  2. Project config file (.semidx.yaml at the project root)
//  3. SEMIDX_* environment variables
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file name.
const ConfigFileName = ".semidx.yaml"

// DefaultFallbackSampleSize is how many full-file chunks the heuristic
// fallback scans when the config leaves it unset.
const DefaultFallbackSampleSize = 50

// Config is the complete semidx configuration.
type Config struct {
	Version     int              `yaml:"version"`
	Chunking    ChunkingConfig   `yaml:"chunking"`
	Embedding   EmbeddingConfig  `yaml:"embedding"`
	Store       StoreConfig      `yaml:"store"`
	Search      SearchConfig     `yaml:"search"`
	Discovery   DiscoveryConfig  `yaml:"discovery"`
	Performance PerfConfig       `yaml:"performance"`
	Logging     LogConfig        `yaml:"logging"`
}

// ChunkingConfig configures the chunker passes.
type ChunkingConfig struct {
	// WindowSize is the target size in characters for logical windows.
	WindowSize int `yaml:"window_size"`

	// WindowOverlap is the overlap fraction between consecutive windows (0-0.5).
	WindowOverlap float64 `yaml:"window_overlap"`

	// MinChunkChars is the minimum viable chunk size in characters.
	MinChunkChars int `yaml:"min_chunk_chars"`

	// MinEntityLines is the minimum body line count for a structural chunk.
	MinEntityLines int `yaml:"min_entity_lines"`

	// StructuralThreshold is the size in bytes above which non-code text
	// still gets a structural/windowing pass.
	StructuralThreshold int `yaml:"structural_threshold"`

	// CoverageFloor is the minimum fraction of a large file the
	// structural pass must cover before windowing kicks in.
	CoverageFloor float64 `yaml:"coverage_floor"`
}

// EmbeddingConfig configures the embedding client.
type EmbeddingConfig struct {
	// Endpoint is the embedding service URL (e.g., http://localhost:8876/embed).
	Endpoint string `yaml:"endpoint"`

	// Model is the embedding model identifier reported by the service.
	Model string `yaml:"model"`

	// Dimensions is the fixed embedding dimension for this deployment.
	Dimensions int `yaml:"dimensions"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the LRU cache size for query embeddings.
	CacheSize int `yaml:"cache_size"`

	// Offline switches to the deterministic static embedder.
	Offline bool `yaml:"offline"`
}

// StoreConfig configures the index store.
type StoreConfig struct {
	// DataDir holds the SQLite database and lock file.
	// Defaults to <project>/.semidx.
	DataDir string `yaml:"data_dir"`

	// Timeout is the per-write timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig configures query defaults.
type SearchConfig struct {
	// MaxResults is the default result cap.
	MaxResults int `yaml:"max_results"`

	// MinSimilarity is the default similarity floor (0-1).
	MinSimilarity float64 `yaml:"min_similarity"`

	// FallbackSampleSize is how many full-file chunks the heuristic
	// fallback scans (largest first).
	FallbackSampleSize int `yaml:"fallback_sample_size"`
}

// DiscoveryConfig configures file discovery.
type DiscoveryConfig struct {
	// Include is the extension allowlist (empty = built-in default).
	Include []string `yaml:"include"`

	// Exclude is the list of directory/glob patterns to skip.
	Exclude []string `yaml:"exclude"`

	// MaxFileSize is the ingestion size ceiling in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// PerfConfig configures batching and concurrency.
type PerfConfig struct {
	// BatchSize is the number of files per ingestion batch.
	BatchSize int `yaml:"batch_size"`

	// Concurrency bounds in-flight embedding and store calls.
	Concurrency int `yaml:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			WindowSize:          2000,
			WindowOverlap:       0.15,
			MinChunkChars:       50,
			MinEntityLines:      2,
			StructuralThreshold: 4096,
			CoverageFloor:       0.6,
		},
		Embedding: EmbeddingConfig{
			Endpoint:   "http://localhost:8876/embed",
			Model:      "all-minilm-l6-v2",
			Dimensions: 384,
			BatchSize:  32,
			Timeout:    60 * time.Second,
			CacheSize:  1000,
		},
		Store: StoreConfig{
			Timeout: 30 * time.Second,
		},
		Search: SearchConfig{
			MaxResults:         10,
			MinSimilarity:      0.25,
			FallbackSampleSize: DefaultFallbackSampleSize,
		},
		Discovery: DiscoveryConfig{
			MaxFileSize: 10 * 1024 * 1024,
		},
		Performance: PerfConfig{
			BatchSize:   64,
			Concurrency: 4,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at the project root, applying defaults and
// environment overrides. A missing file is not an error; defaults apply.
func Load(rootPath string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(rootPath, ConfigFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = filepath.Join(rootPath, ".semidx")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config values from SEMIDX_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("SEMIDX_EMBED_ENDPOINT"); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv("SEMIDX_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("SEMIDX_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("SEMIDX_OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Embedding.Offline = b
		}
	}
	if v := os.Getenv("SEMIDX_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("SEMIDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SEMIDX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Performance.Concurrency = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.WindowSize < c.Chunking.MinChunkChars {
		return fmt.Errorf("chunking.window_size (%d) must be >= min_chunk_chars (%d)",
			c.Chunking.WindowSize, c.Chunking.MinChunkChars)
	}
	if c.Chunking.WindowOverlap < 0 || c.Chunking.WindowOverlap > 0.5 {
		return fmt.Errorf("chunking.window_overlap must be in [0, 0.5], got %v", c.Chunking.WindowOverlap)
	}
	if c.Chunking.CoverageFloor < 0 || c.Chunking.CoverageFloor > 1 {
		return fmt.Errorf("chunking.coverage_floor must be in [0, 1], got %v", c.Chunking.CoverageFloor)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be in [0, 1], got %v", c.Search.MinSimilarity)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Performance.Concurrency <= 0 {
		return fmt.Errorf("performance.concurrency must be positive, got %d", c.Performance.Concurrency)
	}
	if c.Performance.BatchSize <= 0 {
		return fmt.Errorf("performance.batch_size must be positive, got %d", c.Performance.BatchSize)
	}
	return nil
}

// Save writes the config to the project root.
func (c *Config) Save(rootPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	path := filepath.Join(rootPath, ConfigFileName)
	return os.WriteFile(path, data, 0o644)
}
