package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	pineconeMaxTopK         = 10000
	pineconeMaxMetadataTopK = 1000
	pineconeBatch           = 100
)

// pineconeConn is the subset of *pinecone.IndexConnection the index uses.
type pineconeConn interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

// PineconeIndex stores vectors in a Pinecone serverless index over the data-plane connection.
type PineconeIndex struct {
	conn       pineconeConn
	namespace  string
	dimensions int
}

// NewPineconeIndex connects to the index served at host. host may carry an https:// prefix.
func NewPineconeIndex(host, apiKey, namespace string, dimensions int) (*PineconeIndex, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("pinecone index host required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: apiKey, SourceTag: "manabu"})
	if err != nil {
		return nil, fmt.Errorf("create pinecone client: %w", err)
	}
	conn, err := pc.Index(pinecone.NewIndexConnParams{Host: strings.TrimRight(host, "/"), Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("connect pinecone index %s: %w", host, err)
	}
	return newPineconeIndex(conn, namespace, dimensions), nil
}

func newPineconeIndex(conn pineconeConn, namespace string, dimensions int) *PineconeIndex {
	return &PineconeIndex{conn: conn, namespace: namespace, dimensions: dimensions}
}

// Upsert sends records in batches of 100.
func (p *PineconeIndex) Upsert(ctx context.Context, records []Record) error {
	if err := checkDimensions(records, p.dimensions); err != nil {
		return err
	}
	for start := 0; start < len(records); start += pineconeBatch {
		end := min(start+pineconeBatch, len(records))
		vectors := make([]*pinecone.Vector, 0, end-start)
		for _, r := range records[start:end] {
			md, err := structpb.NewStruct(map[string]any{
				FieldText:    r.Metadata.Text,
				FieldSource:  r.Metadata.Source,
				FieldChunkID: r.Metadata.ChunkID,
			})
			if err != nil {
				return fmt.Errorf("pinecone metadata for %s: %w", r.ID, err)
			}
			vectors = append(vectors, &pinecone.Vector{Id: r.ID, Values: r.Vector, Metadata: md})
		}
		if _, err := p.conn.UpsertVectors(ctx, vectors); err != nil {
			return fmt.Errorf("pinecone upsert: %w", err)
		}
	}
	return nil
}

// Query runs a metadata-filtered similarity query.
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	return p.query(ctx, vector, min(topK, pineconeMaxMetadataTopK), filter, true)
}

func (p *PineconeIndex) query(ctx context.Context, vector []float32, topK int, filter *Filter, withMetadata bool) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	if filter != nil && len(filter.In) == 0 {
		return nil, nil
	}
	req := &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: withMetadata,
	}
	if filter != nil {
		mf, err := pineconeFilter(*filter)
		if err != nil {
			return nil, err
		}
		req.MetadataFilter = mf
	}
	resp, err := p.conn.QueryByVectorValues(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       m.Vector.Id,
			Score:    float64(m.Score),
			Metadata: pineconeMetadata(m.Vector.Metadata),
		})
	}
	return matches, nil
}

// Delete removes vectors by ID in batches.
func (p *PineconeIndex) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += pineconeBatch {
		end := min(start+pineconeBatch, len(ids))
		if err := p.conn.DeleteVectorsById(ctx, ids[start:end]); err != nil {
			return fmt.Errorf("pinecone delete: %w", err)
		}
	}
	return nil
}

// IDs discovers matching vector IDs with a filtered scan query, capped at 10000.
func (p *PineconeIndex) IDs(ctx context.Context, filter Filter) ([]string, error) {
	matches, err := p.query(ctx, scanVector(p.dimensions), pineconeMaxTopK, &filter, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids, nil
}

// Count returns the number of vectors in the namespace.
func (p *PineconeIndex) Count(ctx context.Context) (int, error) {
	stats, err := p.conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("pinecone stats: %w", err)
	}
	if ns, ok := stats.Namespaces[p.namespace]; ok && ns != nil {
		return int(ns.VectorCount), nil
	}
	if p.namespace == "" {
		return int(stats.TotalVectorCount), nil
	}
	return 0, nil
}

// Close closes the data-plane connection.
func (p *PineconeIndex) Close() error {
	return p.conn.Close()
}

func pineconeFilter(f Filter) (*pinecone.MetadataFilter, error) {
	in := make([]any, len(f.In))
	for i, v := range f.In {
		in[i] = v
	}
	mf, err := structpb.NewStruct(map[string]any{f.Field: map[string]any{"$in": in}})
	if err != nil {
		return nil, fmt.Errorf("pinecone filter: %w", err)
	}
	return mf, nil
}

func pineconeMetadata(s *structpb.Struct) Metadata {
	md := Metadata{}
	if s == nil {
		return md
	}
	m := s.AsMap()
	if v, ok := m[FieldText].(string); ok {
		md.Text = v
	}
	if v, ok := m[FieldSource].(string); ok {
		md.Source = v
	}
	if v, ok := m[FieldChunkID].(float64); ok {
		md.ChunkID = int(v)
	}
	return md
}
