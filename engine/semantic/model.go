package semantic

import (
	"context"

	"github.com/manualmind/manualmind-mvp/engine/domain"
)

// Embedder maps text to a fixed-size vector. It is consumed only by the
// Store; nothing else in the system sees embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions reports the vector size, used to create the collection.
	Dimensions() int
}

// ScoredChunk is a retrieved chunk with its similarity score and the
// insertion sequence used as a deterministic tie-break.
type ScoredChunk struct {
	domain.Chunk
	Score float32
	Seq   int64
}
