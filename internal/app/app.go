// Package app wires configuration into the components of the indexing and generation pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/cells"
	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/generation"
	"github.com/hyperjump/manabu/internal/indexer"
	"github.com/hyperjump/manabu/internal/retrieval"
	"github.com/hyperjump/manabu/internal/server"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/internal/structure"
	"github.com/hyperjump/manabu/internal/vector"
	"github.com/hyperjump/manabu/internal/watcher"
)

// Components holds every long-lived part of the pipeline. Each is constructed once and
// shared; Close releases them in reverse order of construction.
type Components struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.DocumentStore
	Embedder  embedding.Embedder
	Index     vector.VectorIndex
	Indexer   *indexer.Indexer
	Retriever *retrieval.Retriever
	Generator generation.Generator
	Topics    *structure.TopicsGenerator
	Structure *structure.Generator
	Cells     *cells.Generator
}

// Option overrides a component that would otherwise be built from configuration.
type Option func(*overrides)

type overrides struct {
	generator    generation.Generator
	embedder     embedding.Embedder
	extractor    extract.TextExtractor
	noGeneration bool
}

// WithGenerator uses gen instead of the configured generation provider.
func WithGenerator(gen generation.Generator) Option {
	return func(o *overrides) { o.generator = gen }
}

// WithoutGeneration skips the generation side of the pipeline. Commands that only index,
// delete or select documents use it so that no generation credentials are needed.
func WithoutGeneration() Option {
	return func(o *overrides) { o.noGeneration = true }
}

// WithEmbedder uses e instead of the configured embedding provider.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *overrides) { o.embedder = e }
}

// WithExtractor replaces the PDF text extractor used by the indexer.
func WithExtractor(e extract.TextExtractor) Option {
	return func(o *overrides) { o.extractor = e }
}

// New builds the components described by cfg. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (_ *Components, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}
	c := &Components{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Store, err = storage.New(ctx, cfg.Storage, cfg.Debug, logger)
	if err != nil {
		return nil, fmt.Errorf("open document store: %w", err)
	}

	c.Embedder = o.embedder
	if c.Embedder == nil {
		c.Embedder, err = embedding.New(cfg.Embedding, logger)
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
	}

	c.Index, err = vector.NewVectorIndex(ctx, cfg.Vector, c.Embedder.Dimensions(), logger)
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	idxOpts := []indexer.IndexerOption{indexer.WithLogger(logger)}
	if o.extractor != nil {
		idxOpts = append(idxOpts, indexer.WithExtractor(o.extractor))
	}
	c.Indexer = indexer.NewIndexer(c.Store, c.Embedder, c.Index,
		indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap), idxOpts...)

	c.Retriever = retrieval.New(c.Store, c.Embedder, c.Index,
		retrieval.WithTopK(cfg.Retrieval.TopK), retrieval.WithLogger(logger))

	if o.noGeneration {
		return c, nil
	}
	c.Generator = o.generator
	if c.Generator == nil {
		c.Generator, err = generation.New(cfg.Generation, logger)
		if err != nil {
			return nil, fmt.Errorf("create generator: %w", err)
		}
	}

	structOpts := []structure.Option{
		structure.WithMaxAttempts(cfg.Structure.MaxAttempts),
		structure.WithLogger(logger),
	}
	c.Topics = structure.NewTopicsGenerator(c.Generator, c.Retriever, structOpts...)
	c.Structure = structure.NewGenerator(c.Generator, c.Retriever, structOpts...)
	c.Cells = cells.NewGenerator(c.Generator, c.Retriever,
		cells.WithConcurrency(cfg.Cells.Concurrency), cells.WithLogger(logger))
	return c, nil
}

// NewInbox returns an inbox watcher bound to the indexer, configured from the watch section.
func (c *Components) NewInbox() *watcher.Inbox {
	return watcher.New(c.Indexer,
		watcher.WithRecursive(c.Config.Watch.RecursiveOrDefault()),
		watcher.WithDebounce(c.Config.Watch.Debounce),
		watcher.WithLogger(c.Logger),
	)
}

// Services exposes the components to the HTTP API. watch may be nil.
func (c *Components) Services(watch server.WatchService) server.Services {
	svc := server.Services{
		Store:     c.Store,
		Index:     c.Index,
		Indexer:   c.Indexer,
		Topics:    c.Topics,
		Structure: c.Structure,
		Cells:     c.Cells,
	}
	if watch != nil {
		svc.Watch = watch
	}
	return svc
}

// Close releases the vector index, embedder and store.
func (c *Components) Close() error {
	var errs []error
	if c.Index != nil {
		errs = append(errs, c.Index.Close())
	}
	if c.Embedder != nil {
		errs = append(errs, c.Embedder.Close())
	}
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	return errors.Join(errs...)
}
