package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

var errPrecomputed = errors.New("chromem: embeddings must be supplied by the caller")

// ChromemIndex stores vectors in an embedded chromem-go collection, optionally persisted
// to a directory. chromem filters by metadata equality only, so a membership filter runs
// one query per allowed value and merges the results.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
}

// NewChromemIndex opens (or creates) collection in a chromem database. An empty path keeps
// the database in memory.
func NewChromemIndex(path, collection string, dimensions int) (*ChromemIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else if db, err = chromem.NewPersistentDB(path, false); err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errPrecomputed }
	c, err := db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", collection, err)
	}
	return &ChromemIndex{db: db, collection: c, dimensions: dimensions}, nil
}

// Upsert adds documents; existing IDs are overwritten.
func (c *ChromemIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records, c.dimensions); err != nil {
		return err
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:      r.ID,
			Content: r.Metadata.Text,
			Metadata: map[string]string{
				FieldSource:  r.Metadata.Source,
				FieldChunkID: strconv.Itoa(r.Metadata.ChunkID),
			},
			Embedding: r.Vector,
		}
	}
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("chromem add documents: %w", err)
	}
	return nil
}

// Query returns the topK most similar documents matching filter.
func (c *ChromemIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if len(vector) != c.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(vector), c.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}
	if filter == nil {
		return c.query(ctx, vector, topK, nil)
	}
	var all []Match
	for _, v := range dedupe(filter.In) {
		matches, err := c.query(ctx, vector, topK, map[string]string{filter.Field: v})
		if err != nil {
			return nil, err
		}
		all = append(all, matches...)
	}
	return mergeTopK(all, topK), nil
}

func (c *ChromemIndex) query(ctx context.Context, vector []float32, n int, where map[string]string) ([]Match, error) {
	count := c.collection.Count()
	if count == 0 {
		return nil, nil
	}
	n = min(n, count)
	results, err := c.collection.QueryEmbedding(ctx, vector, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	matches := make([]Match, 0, len(results))
	for _, r := range results {
		chunkID, _ := strconv.Atoi(r.Metadata[FieldChunkID])
		matches = append(matches, Match{
			ID:    r.ID,
			Score: float64(r.Similarity),
			Metadata: Metadata{
				Text:    r.Content,
				Source:  r.Metadata[FieldSource],
				ChunkID: chunkID,
			},
		})
	}
	return matches, nil
}

// Delete removes documents by ID.
func (c *ChromemIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	return nil
}

// IDs lists the IDs of every document matching filter.
func (c *ChromemIndex) IDs(ctx context.Context, filter Filter) ([]string, error) {
	scan := scanVector(c.dimensions)
	var ids []string
	for _, v := range dedupe(filter.In) {
		matches, err := c.query(ctx, scan, c.collection.Count(), map[string]string{filter.Field: v})
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Count returns the number of documents in the collection.
func (c *ChromemIndex) Count(ctx context.Context) (int, error) {
	return c.collection.Count(), nil
}

// Close is a no-op; persistent databases write through on every change.
func (c *ChromemIndex) Close() error {
	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
