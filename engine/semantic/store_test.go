package semantic

import (
	"context"
	"errors"
	"sync"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/manualmind/manualmind-mvp/engine/domain"
)

// --- mocks ---

type fakeEmbedder struct {
	vec []float32
	err error

	mu   sync.Mutex
	seen []string
}

// Embed is called concurrently by Add's worker pool.
func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()
	return f.vec, f.err
}

func (f *fakeEmbedder) seenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }

type mockPoints struct {
	lastUpsert *pb.UpsertPoints
	upsertErr  error
	searchResp *pb.SearchResponse
	searchErr  error
	deleteErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.lastUpsert = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Delete(_ context.Context, _ *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return &pb.PointsOperationResponse{}, m.deleteErr
}

func (m *mockPoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	existing  []string
	created   *pb.CreateCollection
	listErr   error
	createErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	cols := make([]*pb.CollectionDescription, len(m.existing))
	for i, name := range m.existing {
		cols[i] = &pb.CollectionDescription{Name: name}
	}
	return &pb.ListCollectionsResponse{Collections: cols}, m.listErr
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{}, m.createErr
}

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{Text: "Terminal box torque values.", SourcePath: "/tmp/w22.pdf", PageNumber: 3, StartOffset: 0},
		{Text: "Bearing lubrication intervals.", SourcePath: "/tmp/w22.pdf", PageNumber: 7, StartOffset: 800},
	}
}

// --- tests ---

func TestAdd_UpsertsWithProvenance(t *testing.T) {
	points := &mockPoints{}
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	s := NewWithClients(points, &mockCollections{}, "manuals", emb)

	if err := s.Add(context.Background(), testChunks()); err != nil {
		t.Fatal(err)
	}

	if got := emb.seenCount(); got != 2 {
		t.Fatalf("embedded %d texts, want 2", got)
	}
	up := points.lastUpsert
	if up == nil || len(up.Points) != 2 {
		t.Fatalf("upsert = %+v", up)
	}
	if up.Wait == nil || !*up.Wait {
		t.Error("upsert must wait for durable commit")
	}

	p := up.Points[0].Payload
	if p[keySourcePath].GetStringValue() != "/tmp/w22.pdf" {
		t.Errorf("source_path = %q", p[keySourcePath].GetStringValue())
	}
	if p[keyPageNumber].GetIntegerValue() != 3 {
		t.Errorf("page_number = %d", p[keyPageNumber].GetIntegerValue())
	}
	if p[keyStartOffset].GetIntegerValue() != 0 {
		t.Errorf("start_offset = %d", p[keyStartOffset].GetIntegerValue())
	}
	if p[keyContent].GetStringValue() != "Terminal box torque values." {
		t.Errorf("content = %q", p[keyContent].GetStringValue())
	}

	seq0 := up.Points[0].Payload[keySeq].GetIntegerValue()
	seq1 := up.Points[1].Payload[keySeq].GetIntegerValue()
	if seq1 <= seq0 {
		t.Errorf("insertion sequence not increasing: %d then %d", seq0, seq1)
	}
}

func TestAdd_ReingestProducesNewPoints(t *testing.T) {
	points := &mockPoints{}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{vec: []float32{1}})

	chunks := testChunks()
	if err := s.Add(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	first := points.lastUpsert.Points[0].Id.GetUuid()

	if err := s.Add(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	second := points.lastUpsert.Points[0].Id.GetUuid()

	if first == second {
		t.Fatal("re-ingesting the same chunk must create a new point, not overwrite")
	}
}

func TestAdd_EmptyBatch(t *testing.T) {
	points := &mockPoints{}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{vec: []float32{1}})
	if err := s.Add(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if points.lastUpsert != nil {
		t.Fatal("empty batch should not touch the index")
	}
}

func TestAdd_StorageFailure(t *testing.T) {
	points := &mockPoints{upsertErr: errors.New("disk full")}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{vec: []float32{1}})
	err := s.Add(context.Background(), testChunks())
	if !errors.Is(err, domain.ErrIndex) {
		t.Fatalf("got %v, want ErrIndex", err)
	}
}

func TestAdd_EmbedFailure(t *testing.T) {
	points := &mockPoints{}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{err: errors.New("embedder down")})
	if err := s.Add(context.Background(), testChunks()); err == nil {
		t.Fatal("expected error")
	}
	if points.lastUpsert != nil {
		t.Fatal("nothing should be upserted when embedding fails")
	}
}

func scoredPoint(content string, page int, score float32, seq int64) *pb.ScoredPoint {
	return &pb.ScoredPoint{
		Score: score,
		Payload: map[string]*pb.Value{
			keyContent:     {Kind: &pb.Value_StringValue{StringValue: content}},
			keySourcePath:  {Kind: &pb.Value_StringValue{StringValue: "/tmp/w22.pdf"}},
			keyPageNumber:  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(page)}},
			keyStartOffset: {Kind: &pb.Value_IntegerValue{IntegerValue: 0}},
			keySeq:         {Kind: &pb.Value_IntegerValue{IntegerValue: seq}},
		},
	}
}

func TestSearch_RankingAndRoundTrip(t *testing.T) {
	points := &mockPoints{
		searchResp: &pb.SearchResponse{Result: []*pb.ScoredPoint{
			scoredPoint("tied, inserted later", 5, 0.8, 200),
			scoredPoint("best match", 2, 0.9, 300),
			scoredPoint("tied, inserted first", 1, 0.8, 100),
		}},
	}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{vec: []float32{1}})

	results, err := s.Search(context.Background(), "torque?", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}

	if results[0].Text != "best match" || results[0].PageNumber != 2 {
		t.Errorf("rank 0 = %+v", results[0])
	}
	// Tie broken by insertion sequence.
	if results[1].Text != "tied, inserted first" {
		t.Errorf("rank 1 = %q", results[1].Text)
	}
	if results[2].Text != "tied, inserted later" {
		t.Errorf("rank 2 = %q", results[2].Text)
	}
	if results[0].SourcePath != "/tmp/w22.pdf" {
		t.Errorf("provenance lost: %+v", results[0])
	}
}

func TestSearch_EmbedFailure(t *testing.T) {
	s := NewWithClients(&mockPoints{}, &mockCollections{}, "manuals", &fakeEmbedder{err: errors.New("down")})
	if _, err := s.Search(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_IndexFailure(t *testing.T) {
	points := &mockPoints{searchErr: errors.New("unavailable")}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{vec: []float32{1}})
	_, err := s.Search(context.Background(), "q", 3)
	if !errors.Is(err, domain.ErrIndex) {
		t.Fatalf("got %v, want ErrIndex", err)
	}
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	cols := &mockCollections{}
	s := NewWithClients(&mockPoints{}, cols, "manuals", &fakeEmbedder{vec: []float32{1}})
	if err := s.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatal(err)
	}
	if cols.created == nil {
		t.Fatal("collection not created")
	}
	params := cols.created.GetVectorsConfig().GetParams()
	if params.GetSize() != 1536 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("params = %+v", params)
	}
}

func TestEnsureCollection_SkipsWhenPresent(t *testing.T) {
	cols := &mockCollections{existing: []string{"manuals"}}
	s := NewWithClients(&mockPoints{}, cols, "manuals", &fakeEmbedder{vec: []float32{1}})
	if err := s.EnsureCollection(context.Background(), 1536); err != nil {
		t.Fatal(err)
	}
	if cols.created != nil {
		t.Fatal("existing collection must not be recreated")
	}
}

func TestDeleteBySource_Failure(t *testing.T) {
	points := &mockPoints{deleteErr: errors.New("nope")}
	s := NewWithClients(points, &mockCollections{}, "manuals", &fakeEmbedder{vec: []float32{1}})
	err := s.DeleteBySource(context.Background(), "/tmp/w22.pdf")
	if !errors.Is(err, domain.ErrIndex) {
		t.Fatalf("got %v, want ErrIndex", err)
	}
}
