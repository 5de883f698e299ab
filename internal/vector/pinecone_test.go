package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakePineconeConn struct {
	upserted   []*pinecone.Vector
	queries    []*pinecone.QueryByVectorValuesRequest
	deleted    []string
	stats      *pinecone.DescribeIndexStatsResponse
	queryErr   error
	closed     bool
	deleteSize []int
}

func (f *fakePineconeConn) UpsertVectors(_ context.Context, in []*pinecone.Vector) (uint32, error) {
	f.upserted = append(f.upserted, in...)
	return uint32(len(in)), nil
}

func (f *fakePineconeConn) QueryByVectorValues(_ context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error) {
	f.queries = append(f.queries, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	md, _ := structpb.NewStruct(map[string]any{FieldText: "alpha", FieldSource: "one.pdf", FieldChunkID: 2})
	return &pinecone.QueryVectorsResponse{Matches: []*pinecone.ScoredVector{
		{Vector: &pinecone.Vector{Id: "a", Metadata: md}, Score: 0.9},
	}}, nil
}

func (f *fakePineconeConn) DeleteVectorsById(_ context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	f.deleteSize = append(f.deleteSize, len(ids))
	return nil
}

func (f *fakePineconeConn) DescribeIndexStats(context.Context) (*pinecone.DescribeIndexStatsResponse, error) {
	return f.stats, nil
}

func (f *fakePineconeConn) Close() error {
	f.closed = true
	return nil
}

func TestPineconeIndex(t *testing.T) {
	conn := &fakePineconeConn{stats: &pinecone.DescribeIndexStatsResponse{
		TotalVectorCount: 9,
		Namespaces:       map[string]*pinecone.NamespaceSummary{"docs": {VectorCount: 7}},
	}}
	idx := newPineconeIndex(conn, "docs", 3)
	ctx := context.Background()

	if err := idx.Upsert(ctx, sampleRecords()); err != nil {
		t.Fatal(err)
	}
	if len(conn.upserted) != 3 {
		t.Fatalf("upserted = %d, want 3", len(conn.upserted))
	}
	if src := conn.upserted[0].Metadata.AsMap()[FieldSource]; src == "" || src == nil {
		t.Errorf("upsert metadata missing source: %v", conn.upserted[0].Metadata.AsMap())
	}

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 3, SourceIn("one.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Metadata.ChunkID != 2 || matches[0].Metadata.Text != "alpha" {
		t.Errorf("matches = %+v", matches)
	}
	q := conn.queries[0]
	if q.TopK != 3 || !q.IncludeMetadata {
		t.Errorf("query = %+v", q)
	}
	in, ok := q.MetadataFilter.AsMap()[FieldSource].(map[string]any)["$in"].([]any)
	if !ok || len(in) != 1 || in[0] != "one.pdf" {
		t.Errorf("filter = %v", q.MetadataFilter.AsMap())
	}

	ids, err := idx.IDs(ctx, Filter{Field: FieldSource, In: []string{"one.pdf"}})
	if err != nil {
		t.Fatal(err)
	}
	scan := conn.queries[1]
	if scan.TopK != pineconeMaxTopK || scan.IncludeMetadata {
		t.Errorf("scan query = %+v", scan)
	}
	if err := idx.Delete(ctx, ids); err != nil {
		t.Fatal(err)
	}
	if len(conn.deleted) != 1 || conn.deleted[0] != "a" {
		t.Errorf("deleted = %v", conn.deleted)
	}
	if n, err := idx.Count(ctx); err != nil || n != 7 {
		t.Errorf("Count = %d, %v", n, err)
	}
	if err := idx.Close(); err != nil || !conn.closed {
		t.Errorf("Close = %v, closed = %v", err, conn.closed)
	}
}

func TestPineconeIndex_emptyFilterSkipsQuery(t *testing.T) {
	conn := &fakePineconeConn{}
	idx := newPineconeIndex(conn, "", 3)
	matches, err := idx.Query(context.Background(), []float32{1, 0, 0}, 3, &Filter{Field: FieldSource})
	if err != nil || matches != nil {
		t.Errorf("Query = %v, %v", matches, err)
	}
	if len(conn.queries) != 0 {
		t.Errorf("queries = %d, want 0", len(conn.queries))
	}
}

func TestPineconeIndex_deleteBatches(t *testing.T) {
	conn := &fakePineconeConn{}
	idx := newPineconeIndex(conn, "", 3)
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = string(rune('a' + i%26))
	}
	if err := idx.Delete(context.Background(), ids); err != nil {
		t.Fatal(err)
	}
	if len(conn.deleteSize) != 3 || conn.deleteSize[0] != 100 || conn.deleteSize[2] != 50 {
		t.Errorf("batches = %v", conn.deleteSize)
	}
}

func TestPineconeIndex_countDefaultNamespace(t *testing.T) {
	conn := &fakePineconeConn{stats: &pinecone.DescribeIndexStatsResponse{TotalVectorCount: 9}}
	idx := newPineconeIndex(conn, "", 3)
	if n, err := idx.Count(context.Background()); err != nil || n != 9 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestPineconeIndex_errors(t *testing.T) {
	if _, err := NewPineconeIndex("", "k", "", 3); err == nil {
		t.Error("expected error for missing host")
	}
	if _, err := NewPineconeIndex("idx.pinecone.io", "", "", 3); err == nil {
		t.Error("expected error for missing key")
	}
	conn := &fakePineconeConn{queryErr: errors.New("unavailable")}
	idx := newPineconeIndex(conn, "", 3)
	if _, err := idx.Query(context.Background(), []float32{1, 0, 0}, 1, nil); err == nil {
		t.Error("expected error from failed query")
	}
}
