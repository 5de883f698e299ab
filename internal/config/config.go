// Package config provides configuration loading and structs for the Manabu server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Structure  StructureConfig  `yaml:"structure"`
	Cells      CellsConfig      `yaml:"cells"`
	Watch      WatchConfig      `yaml:"watch"`
	Output     OutputConfig     `yaml:"output"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Backend      string `yaml:"backend"` // sqlite | postgres
	DatabasePath string `yaml:"database_path"`
	PostgresDSN  string `yaml:"postgres_dsn"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // hash | onnx | openai | ollama
	ModelPath  string `yaml:"model_path"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	APIKey     string `yaml:"-"`
}

// VectorConfig selects and configures the vector index.
type VectorConfig struct {
	Backend     string `yaml:"backend"` // memory | chromem | qdrant | pinecone
	Collection  string `yaml:"collection"`
	PersistPath string `yaml:"persist_path"`
	Address     string `yaml:"address"`
	IndexHost   string `yaml:"index_host"`
	Namespace   string `yaml:"namespace"`
	APIKey      string `yaml:"-"`
}

// GenerationConfig configures the text generation client.
type GenerationConfig struct {
	Provider          string        `yaml:"provider"` // openai | langchain-openai | ollama
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	APIKey            string        `yaml:"-"`
}

// ChunkingConfig holds chunk window settings.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrievalConfig holds context retrieval settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// StructureConfig holds structure generation settings.
type StructureConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// CellsConfig holds cell content generation settings.
type CellsConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Recursive   *bool         `yaml:"recursive"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// OutputConfig holds notebook output settings.
type OutputConfig struct {
	NotebookFilename string `yaml:"notebook_filename"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and
// overlays secrets from the environment.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	finalize(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault loads path when it exists; otherwise it returns the default configuration
// with paths resolved against the home directory.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		var cfg Config
		finalize(&cfg, filepath.Dir(path))
		return &cfg, nil
	}
	return Load(path)
}

func finalize(cfg *Config, configDir string) {
	ApplyDefaults(cfg)
	ApplyEnv(cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Vector.PersistPath != "" {
		cfg.Vector.PersistPath = expandPath(cfg.Vector.PersistPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// Save writes the config to path. Secrets are never written.
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

// LoadEnv loads variables from the given .env files into the process environment.
// Missing files are ignored; variables already set are kept.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays secrets and connection strings from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Generation.APIKey = v
		cfg.Embedding.APIKey = v
	}
	if cfg.Vector.Backend == "pinecone" {
		cfg.Vector.APIKey = os.Getenv("PINECONE_API_KEY")
	}
	if cfg.Vector.Backend == "qdrant" {
		cfg.Vector.APIKey = os.Getenv("QDRANT_API_KEY")
	}
	if v := os.Getenv("MANABU_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
}

// Validate reports settings required by the selected providers that are missing.
func (c *Config) Validate() error {
	var errs []error
	needsOpenAI := c.Generation.Provider == "openai" || c.Generation.Provider == "langchain-openai" ||
		c.Embedding.Provider == "openai"
	if needsOpenAI && c.Generation.APIKey == "" {
		errs = append(errs, errors.New("environment variable OPENAI_API_KEY is not set"))
	}
	switch c.Vector.Backend {
	case "pinecone":
		if c.Vector.APIKey == "" {
			errs = append(errs, errors.New("environment variable PINECONE_API_KEY is not set"))
		}
		if c.Vector.IndexHost == "" {
			errs = append(errs, errors.New("vector.index_host is required for pinecone"))
		}
	case "qdrant":
		if c.Vector.Address == "" {
			errs = append(errs, errors.New("vector.address is required for qdrant"))
		}
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn or MANABU_POSTGRES_DSN is required for postgres"))
	}
	if c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)",
			c.Chunking.Overlap, c.Chunking.Size))
	}
	return errors.Join(errs...)
}

// Addr returns host:port for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" and other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
