package vector

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const qdrantScrollPage = 256

// QdrantIndex stores vectors in a Qdrant collection over gRPC.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimensions  int
}

// NewQdrantIndex connects to Qdrant at addr and ensures collection exists with cosine distance.
func NewQdrantIndex(ctx context.Context, addr, apiKey, collection string, dimensions int) (*QdrantIndex, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if apiKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(apiKey)))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	q := &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimensions:  dimensions,
	}
	if err := q.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return q, nil
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(metadata.AppendToOutgoingContext(ctx, "api-key", key), method, req, reply, cc, opts...)
	}
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list qdrant collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dimensions),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %s: %w", q.collection, err)
	}
	return nil
}

// Upsert stores records as points with text, source and chunk_id payload. IDs must be UUIDs.
func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records, q.dimensions); err != nil {
		return err
	}
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: pointID(r.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Vector}},
			},
			Payload: map[string]*pb.Value{
				FieldText:    {Kind: &pb.Value_StringValue{StringValue: r.Metadata.Text}},
				FieldSource:  {Kind: &pb.Value_StringValue{StringValue: r.Metadata.Source}},
				FieldChunkID: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.Metadata.ChunkID)}},
			},
		}
	}
	wait := true
	if _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert %d points: %w", len(records), err)
	}
	return nil
}

// Query performs a filtered k-NN search.
func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	if filter != nil && len(filter.In) == 0 {
		return nil, nil
	}
	req := &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if filter != nil {
		req.Filter = memberOf(*filter)
	}
	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	matches := make([]Match, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		matches[i] = Match{
			ID:       r.GetId().GetUuid(),
			Score:    float64(r.GetScore()),
			Metadata: payloadMetadata(r.GetPayload()),
		}
	}
	return matches, nil
}

// Delete removes points by ID.
func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{Points: &pb.PointsIdsList{Ids: pids}},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete %d points: %w", len(ids), err)
	}
	return nil
}

// IDs scrolls through every point matching filter.
func (q *QdrantIndex) IDs(ctx context.Context, filter Filter) ([]string, error) {
	if len(filter.In) == 0 {
		return nil, nil
	}
	var (
		ids    []string
		offset *pb.PointId
	)
	limit := uint32(qdrantScrollPage)
	for {
		resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: q.collection,
			Filter:         memberOf(filter),
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: false}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant scroll: %w", err)
		}
		for _, p := range resp.GetResult() {
			ids = append(ids, p.GetId().GetUuid())
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

// Count returns the exact number of points in the collection.
func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	exact := true
	resp, err := q.points.Count(ctx, &pb.CountPoints{CollectionName: q.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func pointID(id string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
}

// memberOf builds a keyword-set condition on f.Field.
func memberOf(f Filter) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key: f.Field,
					Match: &pb.Match{
						MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: f.In}},
					},
				},
			},
		}},
	}
}

func payloadMetadata(payload map[string]*pb.Value) Metadata {
	return Metadata{
		Text:    payload[FieldText].GetStringValue(),
		Source:  payload[FieldSource].GetStringValue(),
		ChunkID: int(payload[FieldChunkID].GetIntegerValue()),
	}
}
