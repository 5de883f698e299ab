package vector

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestMemberOf(t *testing.T) {
	f := memberOf(Filter{Field: FieldSource, In: []string{"a.pdf", "b.pdf"}})
	if len(f.GetMust()) != 1 {
		t.Fatalf("must conditions = %d", len(f.GetMust()))
	}
	field := f.GetMust()[0].GetField()
	if field.GetKey() != FieldSource {
		t.Errorf("key = %s", field.GetKey())
	}
	got := field.GetMatch().GetKeywords().GetStrings()
	if len(got) != 2 || got[0] != "a.pdf" || got[1] != "b.pdf" {
		t.Errorf("keywords = %v", got)
	}
}

func TestPayloadMetadata(t *testing.T) {
	md := payloadMetadata(map[string]*pb.Value{
		FieldText:    {Kind: &pb.Value_StringValue{StringValue: "body"}},
		FieldSource:  {Kind: &pb.Value_StringValue{StringValue: "a.pdf"}},
		FieldChunkID: {Kind: &pb.Value_IntegerValue{IntegerValue: 4}},
	})
	if md.Text != "body" || md.Source != "a.pdf" || md.ChunkID != 4 {
		t.Errorf("metadata = %+v", md)
	}
	if empty := payloadMetadata(nil); empty != (Metadata{}) {
		t.Errorf("nil payload = %+v", empty)
	}
}
