// Package vector provides vector index backends that store (id, vector, metadata) records
// and answer nearest-neighbour queries restricted by a metadata membership filter.
package vector

import (
	"context"
	"fmt"
	"strconv"
)

// Metadata field names usable in a Filter.
const (
	FieldText    = "text"
	FieldSource  = "source"
	FieldChunkID = "chunk_id"
)

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	// Query returns at most topK matches ordered by descending score. A nil filter
	// matches everything; a filter with an empty In set matches nothing.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error)
	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error
	// IDs lists the IDs of every record matching filter.
	IDs(ctx context.Context, filter Filter) ([]string, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Metadata is stored alongside every vector.
type Metadata struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	ChunkID int    `json:"chunk_id"`
}

// Field returns the string value of a metadata field.
func (m Metadata) Field(name string) string {
	switch name {
	case FieldText:
		return m.Text
	case FieldSource:
		return m.Source
	case FieldChunkID:
		return strconv.Itoa(m.ChunkID)
	}
	return ""
}

// Record is one vector with its ID and metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single query hit.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// Filter restricts matches to records whose Field value is a member of In.
type Filter struct {
	Field string
	In    []string
}

// SourceIn returns a filter on the source field.
func SourceIn(sources ...string) *Filter {
	return &Filter{Field: FieldSource, In: sources}
}

// Matches reports whether m satisfies the filter.
func (f *Filter) Matches(m Metadata) bool {
	if f == nil {
		return true
	}
	v := m.Field(f.Field)
	for _, allowed := range f.In {
		if v == allowed {
			return true
		}
	}
	return false
}

func checkDimensions(records []Record, dims int) error {
	for _, r := range records {
		if len(r.Vector) != dims {
			return fmt.Errorf("vector %s dimension mismatch: got %d, expected %d", r.ID, len(r.Vector), dims)
		}
	}
	return nil
}
