// Package ollama is a minimal client for a locally reachable Ollama server,
// covering the two endpoints this service uses: embeddings and generation.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to one Ollama server.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the Ollama server at baseURL,
// e.g. "http://ollama:11434".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float64 `json:"embedding"`
}

// Embeddings returns the embedding vector for text using the given model.
func (c *Client) Embeddings(ctx context.Context, model, text string) ([]float32, error) {
	var out embedResp
	if err := c.post(ctx, "/api/embeddings", embedReq{Model: model, Prompt: text}, &out); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

type generateReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResp struct {
	Response string `json:"response"`
}

// Generate runs a single non-streaming completion for prompt.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	var out generateResp
	if err := c.post(ctx, "/api/generate", generateReq{Model: model, Prompt: prompt}, &out); err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.Response, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
