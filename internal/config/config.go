// Package config provides configuration loading and structs for the kensaku CLI and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Vector    VectorConfig    `yaml:"vector"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StorageConfig holds the catalog location and the paths of every cache artifact.
type StorageConfig struct {
	CatalogPath    string `yaml:"catalog_path"`
	StopWordsPath  string `yaml:"stopwords_path"`
	CacheDir       string `yaml:"cache_dir"`
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EmbeddingConfig selects and configures the embedding provider.
// The OpenAI API key is read from OPENAI_API_KEY, never from the file.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// SearchConfig holds ranking and chunking settings.
type SearchConfig struct {
	DefaultLimit         int      `yaml:"default_limit"`
	MaxLimit             int      `yaml:"max_limit"`
	RRFK                 int      `yaml:"rrf_k"`
	BM25K1               float64  `yaml:"bm25_k1"`
	BM25B                float64  `yaml:"bm25_b"`
	KeywordBackend       string   `yaml:"keyword_backend"`
	ChunkedSemantic      bool     `yaml:"chunked_semantic"`
	ChunkSize            int      `yaml:"chunk_size"`
	ChunkOverlap         int      `yaml:"chunk_overlap"`
	SemanticChunkSize    int      `yaml:"semantic_chunk_size"`
	SemanticChunkOverlap *int     `yaml:"semantic_chunk_overlap"`
	HybridAlpha          *float64 `yaml:"hybrid_alpha"`
	CandidateMultiplier  int      `yaml:"candidate_multiplier"`
}

// SemanticChunkOverlapOrDefault returns the sentence overlap; 1 when unset.
func (s *SearchConfig) SemanticChunkOverlapOrDefault() int {
	if s.SemanticChunkOverlap != nil {
		return *s.SemanticChunkOverlap
	}
	return 1
}

// Alpha returns the lexical weight for weighted search; 0.5 when unset.
func (s *SearchConfig) Alpha() float64 {
	if s.HybridAlpha != nil {
		return *s.HybridAlpha
	}
	return 0.5
}

// VectorConfig selects the vector index implementation.
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// WatchConfig holds catalog watch settings.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Load reads and parses the config file at path, applies defaults, expands
// paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ExpandPaths(&cfg, filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default configuration with paths resolved against baseDir.
func Default(baseDir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	ExpandPaths(cfg, baseDir)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ExpandPaths resolves every configured path against configDir.
func ExpandPaths(cfg *Config, configDir string) {
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Storage.StopWordsPath = expandPath(cfg.Storage.StopWordsPath, configDir)
	cfg.Storage.CacheDir = expandPath(cfg.Storage.CacheDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

// Validate reports settings no component can run with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "mock", "onnx", "openai":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	switch c.Search.KeywordBackend {
	case "inverted", "bleve":
	default:
		return fmt.Errorf("unknown keyword backend: %q", c.Search.KeywordBackend)
	}
	switch c.Vector.IndexType {
	case "memory", "hnsw":
	default:
		return fmt.Errorf("unknown vector index type: %q", c.Vector.IndexType)
	}
	if c.Search.ChunkOverlap < 0 || c.Search.ChunkOverlap >= c.Search.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", c.Search.ChunkOverlap)
	}
	if o := c.Search.SemanticChunkOverlapOrDefault(); o < 0 || o >= c.Search.SemanticChunkSize {
		return fmt.Errorf("semantic_chunk_overlap must be in [0, semantic_chunk_size), got %d", o)
	}
	if a := c.Search.Alpha(); a < 0 || a > 1 {
		return fmt.Errorf("hybrid_alpha must be within [0, 1], got %v", a)
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("default_limit %d exceeds max_limit %d", c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	return nil
}
