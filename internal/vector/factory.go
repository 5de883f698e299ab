package vector

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hyperjump/manabu/internal/config"
	"go.uber.org/zap"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search, persisted to a file when a path is set.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeChromem uses an embedded chromem-go collection.
	IndexTypeChromem IndexType = "chromem"
	// IndexTypeQdrant uses a Qdrant server over gRPC.
	IndexTypeQdrant IndexType = "qdrant"
	// IndexTypePinecone uses a hosted Pinecone index.
	IndexTypePinecone IndexType = "pinecone"
)

// NewVectorIndex creates the vector index selected by cfg.Backend.
func NewVectorIndex(ctx context.Context, cfg config.VectorConfig, dimensions int, logger *zap.Logger) (VectorIndex, error) {
	var (
		idx VectorIndex
		err error
	)
	switch IndexType(cfg.Backend) {
	case IndexTypeMemory, "":
		if cfg.PersistPath == "" {
			idx, err = NewMemoryIndex(dimensions)
		} else {
			idx, err = OpenMemoryIndex(filepath.Join(cfg.PersistPath, cfg.Collection+".vec"), dimensions)
		}
	case IndexTypeChromem:
		idx, err = NewChromemIndex(cfg.PersistPath, cfg.Collection, dimensions)
	case IndexTypeQdrant:
		idx, err = NewQdrantIndex(ctx, cfg.Address, cfg.APIKey, cfg.Collection, dimensions)
	case IndexTypePinecone:
		idx, err = NewPineconeIndex(cfg.IndexHost, cfg.APIKey, cfg.Namespace, dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, chromem, qdrant, pinecone)", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("vector index ready",
			zap.String("backend", cfg.Backend),
			zap.String("collection", cfg.Collection),
			zap.Int("dimensions", dimensions),
		)
	}
	return idx, nil
}
