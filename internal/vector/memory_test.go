package vector

import (
	"context"
	"path/filepath"
	"testing"
)

func sampleRecords() []Record {
	return []Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: Metadata{Text: "alpha", Source: "one.pdf", ChunkID: 0}},
		{ID: "b", Vector: []float32{0.9, 0.1, 0}, Metadata: Metadata{Text: "beta", Source: "two.pdf", ChunkID: 0}},
		{ID: "c", Vector: []float32{0, 1, 0}, Metadata: Metadata{Text: "gamma", Source: "one.pdf", ChunkID: 1}},
	}
}

func TestMemoryIndex_UpsertQuery(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Upsert(ctx, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Query(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("order = %s, %s", results[0].ID, results[1].ID)
	}
	if results[0].Metadata.Text != "alpha" || results[0].Metadata.Source != "one.pdf" {
		t.Errorf("metadata = %+v", results[0].Metadata)
	}
}

func TestMemoryIndex_QueryFilter(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	_ = idx.Upsert(ctx, sampleRecords())

	tests := []struct {
		name   string
		filter *Filter
		want   []string
	}{
		{"nil filter matches all", nil, []string{"a", "b", "c"}},
		{"single source", SourceIn("one.pdf"), []string{"a", "c"}},
		{"two sources", SourceIn("one.pdf", "two.pdf"), []string{"a", "b", "c"}},
		{"unknown source", SourceIn("three.pdf"), nil},
		{"empty set matches nothing", SourceIn(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Query(ctx, []float32{1, 0, 0}, 10, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d matches, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("match %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestMemoryIndex_UpsertReplaces(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	_ = idx.Upsert(ctx, sampleRecords())
	_ = idx.Upsert(ctx, []Record{{ID: "a", Vector: []float32{0, 0, 1}, Metadata: Metadata{Text: "new", Source: "one.pdf"}}})
	if idx.Size() != 3 {
		t.Errorf("Size=%d, want 3", idx.Size())
	}
	got, _ := idx.Query(ctx, []float32{0, 0, 1}, 1, nil)
	if got[0].ID != "a" || got[0].Metadata.Text != "new" {
		t.Errorf("replaced record not returned: %+v", got[0])
	}
}

func TestMemoryIndex_DeleteAndIDs(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	_ = idx.Upsert(ctx, sampleRecords())

	ids, err := idx.IDs(ctx, Filter{Field: FieldSource, In: []string{"one.pdf"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Fatalf("IDs = %v", ids)
	}
	if err := idx.Delete(ctx, append(ids, "missing")); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Upsert(ctx, []Record{{ID: "x", Vector: []float32{1}}}); err == nil {
		t.Error("expected dimension error on upsert")
	}
	if _, err := idx.Query(ctx, []float32{1, 0}, 1, nil); err == nil {
		t.Error("expected dimension error on query")
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors", "index.vec")
	ctx := context.Background()

	idx, err := OpenMemoryIndex(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	_ = idx.Upsert(ctx, sampleRecords())
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenMemoryIndex(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Size() != 3 {
		t.Fatalf("Size after load = %d", reopened.Size())
	}
	got, _ := reopened.Query(ctx, []float32{0, 1, 0}, 1, SourceIn("one.pdf"))
	if len(got) != 1 || got[0].ID != "c" || got[0].Metadata.Text != "gamma" || got[0].Metadata.ChunkID != 1 {
		t.Errorf("loaded match = %+v", got)
	}

	if _, err := OpenMemoryIndex(path, 4); err == nil {
		t.Error("expected dimension mismatch error")
	}
}
