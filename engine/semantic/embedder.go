package semantic

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/manualmind/manualmind-mvp/pkg/ollama"
)

// Default embedding settings for the OpenAI backend.
const (
	DefaultOpenAIEmbedModel = "text-embedding-3-small"
	DefaultEmbedDimensions  = 1536
)

// OpenAIEmbedder produces embeddings through the OpenAI API. Requests are
// rate-limited client-side to stay under the account's requests-per-second
// cap when ingestion embeds large batches.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	dims    int
	limiter *rate.Limiter
}

// NewOpenAIEmbedder creates an embedder for the given model and dimension.
func NewOpenAIEmbedder(apiKey, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = DefaultOpenAIEmbedModel
	}
	if dims <= 0 {
		dims = DefaultEmbedDimensions
	}
	return &OpenAIEmbedder{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		dims:    dims,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// Dimensions returns the vector size this embedder produces.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      openai.EmbeddingModel(e.model),
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: openai: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: openai: empty response")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// OllamaEmbedder produces embeddings through a local Ollama server.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
	dims   int
}

// NewOllamaEmbedder creates an embedder backed by the Ollama server at
// baseURL. dims must match the chosen model's output size.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	return &OllamaEmbedder{client: ollama.NewClient(baseURL), model: model, dims: dims}
}

// Dimensions returns the vector size this embedder produces.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embeddings(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}
