package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/pkg/ollama"
)

// LocalProvider answers through a locally reachable Ollama server. It has no
// credential to preflight; network, timeout, and model errors all surface as
// domain.ErrGeneration.
type LocalProvider struct {
	client *ollama.Client
	model  string
	logger *slog.Logger
}

// NewLocalProvider creates a LocalProvider for model served at baseURL.
func NewLocalProvider(baseURL, model string, logger *slog.Logger) *LocalProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalProvider{
		client: ollama.NewClient(baseURL),
		model:  model,
		logger: logger,
	}
}

// Name implements Provider.
func (p *LocalProvider) Name() string { return "local:" + p.model }

// Generate implements Provider.
func (p *LocalProvider) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	p.logger.Info("sending prompt to local model", "model", p.model)
	answer, err := p.client.Generate(ctx, p.model, BuildPrompt(contextText, prompt))
	if err != nil {
		return "", fmt.Errorf("llm: %s: %v: %w", p.Name(), err, domain.ErrGeneration)
	}
	return strings.TrimSpace(answer), nil
}
