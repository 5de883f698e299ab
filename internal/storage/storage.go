// Package storage persists the indexed document records, their selection flags and the
// ledger of vector ids written for each document.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/manabu/internal/models"
)

var (
	// ErrNotFound is returned when a named document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when inserting a name that is already indexed.
	ErrExists = errors.New("document already exists")
)

// DocumentStore tracks indexed documents and their selection state.
type DocumentStore interface {
	// List returns every document ordered by name.
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, name string) (*models.Document, error)
	Exists(ctx context.Context, name string) (bool, error)

	// Insert records a new, unselected document together with the vector ids of its chunks.
	Insert(ctx context.Context, name string, chunks []models.ChunkRecord) error
	// Delete removes the document and its chunk ledger.
	Delete(ctx context.Context, name string) error

	// BulkSetSelected marks exactly the given names as selected and every other document as
	// unselected, in one atomic statement. Unknown names are ignored.
	BulkSetSelected(ctx context.Context, names []string) error
	SelectedNames(ctx context.Context) ([]string, error)

	// ChunkIDs returns the vector ids recorded for a document in ordinal order.
	ChunkIDs(ctx context.Context, name string) ([]string, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
