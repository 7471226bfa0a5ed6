// Package semantic owns all Qdrant operations: persisting embedded chunks
// and nearest-neighbor search. Embedding happens inside the store so callers
// hand over plain chunks and plain query strings.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/pkg/fn"
)

// embedWorkers bounds concurrent embedding calls during Add.
const embedWorkers = 4

// upsertBatch caps points per upsert request to stay under the gRPC
// message size limit on large manuals.
const upsertBatch = 256

// Payload keys. Provenance must round-trip through these unchanged.
const (
	keyContent     = "content"
	keySourcePath  = "source_path"
	keyPageNumber  = "page_number"
	keyStartOffset = "start_offset"
	keySeq         = "seq"
)

// pointsAPI is the slice of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is the sole owner of the vector index.
type Store struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	embedder    Embedder
	logger      *slog.Logger
	seq         atomic.Int64
}

// New creates a Store connected to Qdrant at the given gRPC address.
func New(addr, collection string, embedder Embedder, logger *slog.Logger) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	s := newStore(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, embedder, logger)
	s.conn = conn
	return s, nil
}

// NewWithClients creates a Store over injected clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, embedder Embedder) *Store {
	return newStore(points, collections, collection, embedder, nil)
}

func newStore(points pointsAPI, collections collectionsAPI, collection string, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		embedder:    embedder,
		logger:      logger,
	}
	// Seed the insertion sequence from the clock so it keeps increasing
	// across process restarts.
	s.seq.Store(time.Now().UnixNano())
	return s
}

// Close closes the underlying gRPC connection, if the store owns one.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context, dims int) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", s.collection, err)
	}
	return nil
}

// Add embeds each chunk's text and persists vector plus provenance in
// batched upserts. Every batch is durably committed before Add returns
// (Wait=true). Duplicate content is allowed: re-ingesting a file inserts
// new points rather than overwriting old ones.
func (s *Store) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embedded := fn.ParMapResult(chunks, embedWorkers, func(c domain.Chunk) fn.Result[[]float32] {
		return fn.FromPair(s.embedder.Embed(ctx, c.Text))
	})
	vectors, err := fn.Collect(embedded).Unwrap()
	if err != nil {
		return fmt.Errorf("semantic: embed chunks: %w", err)
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		seq := s.seq.Add(1)
		// Point identity includes the insertion sequence, so the same chunk
		// ingested twice gets two points.
		id := uuid.NewSHA1(uuid.NameSpaceURL,
			[]byte(fmt.Sprintf("%s:%d:%d:%d", c.SourcePath, c.PageNumber, c.StartOffset, seq))).String()

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[i]}},
			},
			Payload: map[string]*pb.Value{
				keyContent:     {Kind: &pb.Value_StringValue{StringValue: c.Text}},
				keySourcePath:  {Kind: &pb.Value_StringValue{StringValue: c.SourcePath}},
				keyPageNumber:  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.PageNumber)}},
				keyStartOffset: {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.StartOffset)}},
				keySeq:         {Kind: &pb.Value_IntegerValue{IntegerValue: seq}},
			},
		}
	}

	wait := true
	for _, batch := range fn.Chunk(points, upsertBatch) {
		_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: s.collection,
			Wait:           &wait,
			Points:         batch,
		})
		if err != nil {
			return fmt.Errorf("semantic: upsert %d points: %v: %w", len(batch), err, domain.ErrIndex)
		}
	}

	s.logger.Info("semantic: indexed", "chunks", len(chunks))
	return nil
}

// Search embeds the query and returns up to k chunks ranked by similarity,
// highest first. Equal scores are ordered by insertion sequence, which keeps
// ranking deterministic for a fixed index state.
func (s *Store) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %v: %w", err, domain.ErrIndex)
	}

	results := make([]ScoredChunk, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = scoredChunkFromPoint(r)
	}
	rankResults(results)
	return results, nil
}

// DeleteBySource removes all points for one source file. Used by the
// -replace ingestion mode; normal ingestion never deletes.
func (s *Store) DeleteBySource(ctx context.Context, sourcePath string) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{{
						ConditionOneOf: &pb.Condition_Field{
							Field: &pb.FieldCondition{
								Key:   keySourcePath,
								Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: sourcePath}},
							},
						},
					}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by source %s: %v: %w", sourcePath, err, domain.ErrIndex)
	}
	return nil
}

func scoredChunkFromPoint(r *pb.ScoredPoint) ScoredChunk {
	sc := ScoredChunk{Score: r.GetScore()}
	for key, val := range r.GetPayload() {
		switch key {
		case keyContent:
			sc.Text = val.GetStringValue()
		case keySourcePath:
			sc.SourcePath = val.GetStringValue()
		case keyPageNumber:
			sc.PageNumber = int(val.GetIntegerValue())
		case keyStartOffset:
			sc.StartOffset = int(val.GetIntegerValue())
		case keySeq:
			sc.Seq = val.GetIntegerValue()
		}
	}
	return sc
}

// rankResults orders by score descending, then insertion sequence ascending.
func rankResults(results []ScoredChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Seq < results[j].Seq
	})
}
