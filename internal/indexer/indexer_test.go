package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/manabu/internal/embedding"
	"github.com/hyperjump/manabu/internal/extract"
	"github.com/hyperjump/manabu/internal/storage"
	"github.com/hyperjump/manabu/internal/vector"
	"go.uber.org/zap"
)

// textExtractor treats the uploaded bytes as already-extracted text.
type textExtractor struct{ calls int }

func (e *textExtractor) ExtractBytes(content []byte, name string) (string, error) {
	e.calls++
	if !extract.IsSupported(name) {
		return "", extract.ErrUnsupportedFormat
	}
	return string(content), nil
}

type fixture struct {
	idx       *Indexer
	store     *storage.SQLiteStore
	index     *vector.MemoryIndex
	extractor *textExtractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	vecIndex, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	ext := &textExtractor{}
	idx := NewIndexer(store, embedding.NewHashEmbedder(16), vecIndex, NewChunker(1000, 100),
		WithExtractor(ext), WithLogger(zap.NewNop()))
	return &fixture{idx: idx, store: store, index: vecIndex, extractor: ext}
}

func words(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString("word ")
	}
	return strings.TrimSpace(b.String()[:n])
}

func TestIndexBytes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.idx.IndexBytes(ctx, "lecture.pdf", []byte(words(2500)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Chunks != 3 || res.AlreadyIndexed {
		t.Fatalf("result = %+v", res)
	}
	if res.Message != "Indexed 3 chunks from lecture.pdf" {
		t.Errorf("message = %q", res.Message)
	}
	if f.index.Size() != 3 {
		t.Errorf("vectors = %d", f.index.Size())
	}
	doc, err := f.store.Get(ctx, "lecture.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Selected || doc.Chunks != 3 {
		t.Errorf("document = %+v", doc)
	}

	matches, _ := f.index.Query(ctx, make16(), 10, vector.SourceIn("lecture.pdf"))
	for _, m := range matches {
		if m.Metadata.Source != "lecture.pdf" || m.Metadata.Text == "" {
			t.Errorf("metadata = %+v", m.Metadata)
		}
	}
}

func make16() []float32 {
	v := make([]float32, 16)
	v[0] = 1
	return v
}

func TestIndexBytes_duplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.idx.IndexBytes(ctx, "a.pdf", []byte("hello world")); err != nil {
		t.Fatal(err)
	}
	res, err := f.idx.IndexBytes(ctx, "a.pdf", []byte("other text"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlreadyIndexed || res.Message != MessageAlreadyIndexed {
		t.Errorf("result = %+v", res)
	}
	if f.extractor.calls != 1 {
		t.Errorf("extractor called %d times, want 1", f.extractor.calls)
	}
}

func TestIndexBytes_rejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	_, err := f.idx.IndexBytes(context.Background(), "notes.txt", []byte("text"))
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
	if f.extractor.calls != 0 || f.index.Size() != 0 {
		t.Error("work done before rejection")
	}
	if ok, _ := f.store.Exists(context.Background(), "notes.txt"); ok {
		t.Error("rejected document recorded")
	}
}

func TestIndexFileAndDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("alpha text"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "B.PDF"), []byte("beta text"), 0644)
	_ = os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("ignored"), 0644)
	sub := filepath.Join(dir, "sub")
	_ = os.MkdirAll(sub, 0755)
	_ = os.WriteFile(filepath.Join(sub, "c.pdf"), []byte("gamma text"), 0644)

	if _, err := f.idx.IndexFile(ctx, filepath.Join(dir, "skip.txt")); !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Errorf("IndexFile(txt) err = %v", err)
	}

	n, err := f.idx.IndexDirectory(ctx, dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("non-recursive indexed %d, want 2", n)
	}
	n, err = f.idx.IndexDirectory(ctx, dir, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("recursive indexed %d new, want 1", n)
	}
	if c, _ := f.store.CountDocuments(ctx); c != 3 {
		t.Errorf("documents = %d", c)
	}
	if _, err := f.idx.IndexDirectory(ctx, filepath.Join(dir, "a.pdf"), false); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.idx.IndexBytes(ctx, "a.pdf", []byte(words(2500)))
	_, _ = f.idx.IndexBytes(ctx, "b.pdf", []byte("keep me"))

	res, err := f.idx.Delete(ctx, "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Vectors != 3 || !res.Recorded {
		t.Errorf("result = %+v, want 3 vectors and a recorded document", res)
	}
	if f.index.Size() != 1 {
		t.Errorf("remaining vectors = %d", f.index.Size())
	}
	if ok, _ := f.store.Exists(ctx, "a.pdf"); ok {
		t.Error("document still recorded")
	}
	if _, err := f.idx.Delete(ctx, "a.pdf"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}

	// Vectors without a ledger entry are found by the index scan.
	_ = f.index.Upsert(ctx, []vector.Record{{ID: "orphan", Vector: make16(), Metadata: vector.Metadata{Source: "c.pdf"}}})
	res, err = f.idx.Delete(ctx, "c.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Vectors != 1 || res.Recorded {
		t.Errorf("orphan delete = %+v, want 1 vector and no record", res)
	}
}

// flakyIndex fails the first Delete call.
type flakyIndex struct {
	*vector.MemoryIndex
	failed bool
}

func (f *flakyIndex) Delete(ctx context.Context, ids []string) error {
	if !f.failed {
		f.failed = true
		return errors.New("index unavailable")
	}
	return f.MemoryIndex.Delete(ctx, ids)
}

func TestDelete_vectorFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flaky := &flakyIndex{MemoryIndex: f.index}
	idx := NewIndexer(f.store, embedding.NewHashEmbedder(16), flaky, NewChunker(1000, 100),
		WithExtractor(f.extractor), WithLogger(zap.NewNop()))
	if _, err := idx.IndexBytes(ctx, "a.pdf", []byte(words(2500))); err != nil {
		t.Fatal(err)
	}

	if _, err := idx.Delete(ctx, "a.pdf"); err == nil {
		t.Fatal("expected error from failing vector delete")
	}
	if ok, _ := f.store.Exists(ctx, "a.pdf"); ok {
		t.Error("record kept after vector failure")
	}
	if f.index.Size() != 3 {
		t.Fatalf("vectors = %d, want 3 left for retry", f.index.Size())
	}

	res, err := idx.Delete(ctx, "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Vectors != 3 || res.Recorded || f.index.Size() != 0 {
		t.Errorf("retry = %+v, remaining %d", res, f.index.Size())
	}
}
