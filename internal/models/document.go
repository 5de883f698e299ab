// Package models defines core data structures for documents, chunks, cells and notebook structures.
package models

import "time"

// Document is an indexed source document. Name is the unique key.
type Document struct {
	Name      string    `json:"name" db:"name"`
	Selected  bool      `json:"selected" db:"selected"`
	Chunks    int       `json:"chunks" db:"chunk_count"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Chunk is an overlap-padded window of a document's text.
type Chunk struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Ordinal int    `json:"chunk_id"`
}

// ChunkRecord ties a vector id in the vector index to its document.
type ChunkRecord struct {
	VectorID string `json:"vector_id" db:"vector_id"`
	Document string `json:"document" db:"document"`
	Ordinal  int    `json:"ordinal" db:"ordinal"`
}
