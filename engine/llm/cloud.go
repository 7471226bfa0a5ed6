package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/pkg/fn"
	"github.com/manualmind/manualmind-mvp/pkg/resilience"
)

// CloudProvider answers through a hosted chat-completions API. A blank
// credential is detected before any network call; repeated transport
// failures trip a circuit breaker so the failover path stops paying
// connect-timeout latency.
type CloudProvider struct {
	client  openai.Client
	apiKey  string
	model   string
	breaker *resilience.Breaker
	logger  *slog.Logger
}

// NewCloudProvider creates a CloudProvider for the given model. The client
// is constructed even with a blank key; Preflight guards actual use.
func NewCloudProvider(apiKey, model string, logger *slog.Logger) *CloudProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudProvider{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		apiKey:  apiKey,
		model:   model,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		logger:  logger,
	}
}

// Name implements Provider.
func (p *CloudProvider) Name() string { return "cloud:" + p.model }

// Preflight reports whether a Generate call could possibly succeed.
// It never touches the network.
func (p *CloudProvider) Preflight() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return fmt.Errorf("llm: %s: %w", p.Name(), domain.ErrCredentialMissing)
	}
	return nil
}

// Generate implements Provider.
func (p *CloudProvider) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	if err := p.Preflight(); err != nil {
		return "", err
	}

	result := resilience.CallResult(p.breaker, ctx, func(ctx context.Context) fn.Result[string] {
		completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(p.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(BuildPrompt(contextText, prompt)),
			},
		})
		if err != nil {
			return fn.Errf[string]("llm: %s: %v: %w", p.Name(), err, domain.ErrGeneration)
		}
		if len(completion.Choices) == 0 {
			return fn.Errf[string]("llm: %s: empty completion: %w", p.Name(), domain.ErrGeneration)
		}
		return fn.Ok(strings.TrimSpace(completion.Choices[0].Message.Content))
	})

	answer, err := result.Unwrap()
	if err != nil {
		p.logger.Warn("cloud generation failed", "provider", p.Name(), "err", err)
		return "", err
	}
	return answer, nil
}
