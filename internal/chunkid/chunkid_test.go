package chunkid

import (
	"testing"

	"github.com/google/uuid"
)

func TestForChunk(t *testing.T) {
	id1 := ForChunk("intro.pdf", 0)
	id2 := ForChunk("intro.pdf", 0)
	if id1 != id2 {
		t.Errorf("same chunk should give same ID: %q vs %q", id1, id2)
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("ID should be a UUID: %v", err)
	}
}

func TestForChunk_distinct(t *testing.T) {
	seen := map[string]bool{}
	for _, doc := range []string{"a.pdf", "b.pdf", "a.pdf1"} {
		for i := 0; i < 12; i++ {
			id := ForChunk(doc, i)
			if seen[id] {
				t.Fatalf("duplicate ID %s for %s/%d", id, doc, i)
			}
			seen[id] = true
		}
	}
}

func TestDocumentName(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/inbox/lecture.pdf", "lecture.pdf"},
		{"/inbox/sub/../notes.pdf", "notes.pdf"},
		{"plain.pdf", "plain.pdf"},
	}
	for _, tt := range tests {
		if got := DocumentName(tt.path); got != tt.want {
			t.Errorf("DocumentName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
