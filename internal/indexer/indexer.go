package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hyperjump/manabu/internal/chunkid"
	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/models"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/internal/vector"
)

// MessageAlreadyIndexed is reported when a document name is already recorded.
const MessageAlreadyIndexed = "File already indexed"

// Result describes the outcome of indexing one document.
type Result struct {
	Document       string `json:"document"`
	Chunks         int    `json:"chunks"`
	AlreadyIndexed bool   `json:"already_indexed"`
	Message        string `json:"message"`
}

// Indexer runs the index path (extract, chunk, embed, upsert, record) and the delete path.
type Indexer struct {
	store     storage.DocumentStore
	embedder  embedding.Embedder
	index     vector.VectorIndex
	chunker   *Chunker
	extractor extract.TextExtractor
	logger    *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document indexed, document deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtractor replaces the PDF extractor.
func WithExtractor(e extract.TextExtractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.DocumentStore,
	embedder embedding.Embedder,
	index vector.VectorIndex,
	chunker *Chunker,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		index:     index,
		chunker:   chunker,
		extractor: extract.NewExtractor(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexBytes indexes one uploaded document. Names without a .pdf extension are rejected with
// extract.ErrUnsupportedFormat before any other work; a name already in the store is a no-op.
func (idx *Indexer) IndexBytes(ctx context.Context, name string, content []byte) (*Result, error) {
	if !extract.IsSupported(name) {
		return nil, fmt.Errorf("%s: %w", name, extract.ErrUnsupportedFormat)
	}
	exists, err := idx.store.Exists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check document: %w", err)
	}
	if exists {
		idx.debug("indexer skipping known document", zap.String("document", name))
		return &Result{Document: name, AlreadyIndexed: true, Message: MessageAlreadyIndexed}, nil
	}

	text, err := idx.extractor.ExtractBytes(content, name)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	return idx.indexText(ctx, name, text)
}

func (idx *Indexer) indexText(ctx context.Context, name, text string) (*Result, error) {
	chunks := idx.chunker.Chunk(name, text)
	ledger := make([]models.ChunkRecord, len(chunks))
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		vectors, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		records := make([]vector.Record, len(chunks))
		for i, ch := range chunks {
			id := chunkid.ForChunk(name, ch.Ordinal)
			records[i] = vector.Record{
				ID:       id,
				Vector:   vectors[i],
				Metadata: vector.Metadata{Text: ch.Text, Source: ch.Source, ChunkID: ch.Ordinal},
			}
			ledger[i] = models.ChunkRecord{VectorID: id, Document: name, Ordinal: ch.Ordinal}
		}
		if err := idx.index.Upsert(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to index vectors: %w", err)
		}
	}

	if err := idx.store.Insert(ctx, name, ledger); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return &Result{Document: name, AlreadyIndexed: true, Message: MessageAlreadyIndexed}, nil
		}
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	idx.debug("indexer document indexed", zap.String("document", name), zap.Int("chunks", len(chunks)))
	return &Result{
		Document: name,
		Chunks:   len(chunks),
		Message:  fmt.Sprintf("Indexed %d chunks from %s", len(chunks), name),
	}, nil
}

// IndexFile reads a PDF from disk and indexes it under its base name.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*Result, error) {
	name := chunkid.DocumentName(path)
	if !extract.IsSupported(name) {
		return nil, fmt.Errorf("%s: %w", name, extract.ErrUnsupportedFormat)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	idx.debug("indexer indexing file", zap.String("path", path))
	return idx.IndexBytes(ctx, name, content)
}

// IndexDirectory indexes every PDF in dir, descending into subdirectories when recursive is
// set. It returns the number of documents newly indexed and the first error encountered.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !extract.IsSupported(path) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		res, indexErr := idx.IndexFile(ctx, path)
		if indexErr != nil {
			return indexErr
		}
		if !res.AlreadyIndexed {
			n++
		}
		return nil
	})
	return n, err
}

// DeleteResult reports what a delete removed.
type DeleteResult struct {
	Document string `json:"document"`
	// Recorded is true when the store held a record for the document.
	Recorded bool `json:"recorded"`
	Vectors  int  `json:"vectors"`
}

// Delete removes the store record of the named document and then every one of its vectors.
// Vector ids come from the chunk ledger merged with a filtered scan of the index. It returns
// storage.ErrNotFound when neither the store nor the index knows the name. A failed vector
// delete leaves the record gone; calling Delete again finds the remaining vectors by scan.
func (idx *Indexer) Delete(ctx context.Context, name string) (*DeleteResult, error) {
	idx.debug("indexer deleting document", zap.String("document", name))
	ids, err := idx.store.ChunkIDs(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk ids: %w", err)
	}
	scanned, err := idx.index.IDs(ctx, vector.Filter{Field: vector.FieldSource, In: []string{name}})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vector index: %w", err)
	}
	ids = union(ids, scanned)

	res := &DeleteResult{Document: name, Recorded: true}
	if err := idx.store.Delete(ctx, name); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to delete document record: %w", err)
		}
		if len(ids) == 0 {
			return nil, err
		}
		res.Recorded = false
	}
	if err := idx.index.Delete(ctx, ids); err != nil {
		if idx.logger != nil {
			idx.logger.Warn("document record deleted but vectors remain",
				zap.String("document", name), zap.Int("vectors", len(ids)), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to delete from vector index: %w", err)
	}
	res.Vectors = len(ids)
	idx.debug("indexer document deleted", zap.String("document", name),
		zap.Bool("recorded", res.Recorded), zap.Int("vectors", res.Vectors))
	return res, nil
}

func (idx *Indexer) debug(msg string, fields ...zap.Field) {
	if idx.logger != nil {
		idx.logger.Debug(msg, fields...)
	}
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
