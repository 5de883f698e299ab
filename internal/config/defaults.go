package config

import "time"

// Default values shared with the components that consume them.
const (
	DefaultChunkSize        = 1000
	DefaultChunkOverlap     = 100
	DefaultTopK             = 3
	DefaultMaxAttempts      = 3
	DefaultDimensions       = 384
	DefaultNotebookFilename = "generated_notebook.ipynb"
	DefaultGenerationModel  = "gpt-4o"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5 * time.Minute
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 64 << 20
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".manabu/data/documents.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = ".manabu/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = DefaultDimensions
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "chromem"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "manabu-context"
	}
	if cfg.Vector.Backend == "chromem" && cfg.Vector.PersistPath == "" {
		cfg.Vector.PersistPath = ".manabu/data/vectors"
	}
	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = "openai"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = DefaultGenerationModel
	}
	if cfg.Generation.RequestsPerSecond == 0 {
		cfg.Generation.RequestsPerSecond = 2
	}
	if cfg.Generation.Burst == 0 {
		cfg.Generation.Burst = 4
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 90 * time.Second
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = DefaultChunkSize
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = DefaultChunkOverlap
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}
	if cfg.Structure.MaxAttempts == 0 {
		cfg.Structure.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Cells.Concurrency == 0 {
		cfg.Cells.Concurrency = 4
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Output.NotebookFilename == "" {
		cfg.Output.NotebookFilename = DefaultNotebookFilename
	}
}
