// Package chunkid provides deterministic vector IDs for document chunks and the document
// name used for files picked up from disk.
package chunkid

import (
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// namespace scopes chunk UUIDs to this application.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("manabu:chunk"))

// ForChunk returns a stable UUID for the ordinal-th chunk of document.
// Same document and ordinal always yield the same ID.
func ForChunk(document string, ordinal int) string {
	return uuid.NewSHA1(namespace, []byte(document+"\x00"+strconv.Itoa(ordinal))).String()
}

// DocumentName returns the document key for a file on disk: its base name.
func DocumentName(path string) string {
	return filepath.Base(filepath.Clean(path))
}
