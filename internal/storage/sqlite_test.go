package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/manabu/internal/config"
	"github.com/hyperjump/manabu/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func ledger(name string, ids ...string) []models.ChunkRecord {
	out := make([]models.ChunkRecord, len(ids))
	for i, id := range ids {
		out[i] = models.ChunkRecord{VectorID: id, Document: name, Ordinal: i}
	}
	return out
}

func TestSQLiteStore_InsertGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Insert(ctx, "a.pdf", ledger("a.pdf", "v1", "v2")); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if got.Selected {
		t.Error("new documents must be unselected")
	}
	if got.Chunks != 2 || got.CreatedAt.IsZero() {
		t.Errorf("got %+v", got)
	}
	if ok, _ := store.Exists(ctx, "a.pdf"); !ok {
		t.Error("Exists = false")
	}

	err = store.Insert(ctx, "a.pdf", nil)
	if !errors.Is(err, ErrExists) {
		t.Errorf("duplicate insert err = %v", err)
	}

	ids, err := store.ChunkIDs(ctx, "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ids, []string{"v1", "v2"}) {
		t.Errorf("ChunkIDs = %v", ids)
	}

	if err := store.Delete(ctx, "a.pdf"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
	if ids, _ := store.ChunkIDs(ctx, "a.pdf"); len(ids) != 0 {
		t.Errorf("ledger not cleared: %v", ids)
	}
	if err := store.Delete(ctx, "a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestSQLiteStore_BulkSetSelected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		if err := store.Insert(ctx, name, nil); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"one", []string{"a.pdf"}, []string{"a.pdf"}},
		{"replaces previous", []string{"b.pdf", "c.pdf"}, []string{"b.pdf", "c.pdf"}},
		{"idempotent", []string{"b.pdf", "c.pdf"}, []string{"b.pdf", "c.pdf"}},
		{"unknown names ignored", []string{"z.pdf", "a.pdf"}, []string{"a.pdf"}},
		{"empty clears", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.BulkSetSelected(ctx, tt.input); err != nil {
				t.Fatal(err)
			}
			got, err := store.SelectedNames(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SelectedNames = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.Insert(ctx, "b.pdf", ledger("b.pdf", "b1"))
	_ = store.Insert(ctx, "a.pdf", ledger("a.pdf", "a1", "a2"))
	_ = store.BulkSetSelected(ctx, []string{"b.pdf"})

	docs, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Name != "a.pdf" || docs[1].Name != "b.pdf" {
		t.Fatalf("List = %+v", docs)
	}
	if docs[0].Selected || !docs[1].Selected {
		t.Errorf("selection flags = %v, %v", docs[0].Selected, docs[1].Selected)
	}
	if n, _ := store.CountDocuments(ctx); n != 2 {
		t.Errorf("CountDocuments = %d", n)
	}
	if n, _ := store.CountChunks(ctx); n != 3 {
		t.Errorf("CountChunks = %d", n)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Insert(ctx, "a.pdf", nil)
	_ = store.BulkSetSelected(ctx, []string{"a.pdf"})
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	names, _ := reopened.SelectedNames(ctx)
	if !reflect.DeepEqual(names, []string{"a.pdf"}) {
		t.Errorf("SelectedNames after reopen = %v", names)
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, config.StorageConfig{Backend: "sqlite", DatabasePath: filepath.Join(t.TempDir(), "x.db")}, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	store.Close()

	if _, err := New(ctx, config.StorageConfig{Backend: "postgres"}, false, nil); err == nil {
		t.Error("expected error for postgres without dsn")
	}
	if _, err := New(ctx, config.StorageConfig{Backend: "mongo"}, false, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestUsageBytes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	_ = os.MkdirAll(sub, 0755)
	_ = os.WriteFile(filepath.Join(sub, "b"), make([]byte, 50), 0644)

	got, err := UsageBytes(dir, filepath.Join(dir, "missing"), "")
	if err != nil {
		t.Fatal(err)
	}
	if got != 150 {
		t.Errorf("UsageBytes = %d, want 150", got)
	}
}
