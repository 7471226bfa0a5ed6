// Package failover implements the two-level provider selection policy: the
// primary is always attempted first (subject to a cheap pre-flight check),
// the fallback exactly once after a primary failure, and nothing beyond
// that. There are no retries within a provider and the fallback is never
// called speculatively.
package failover

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/engine/llm"
	"github.com/manualmind/manualmind-mvp/pkg/fn"
)

// Controller holds a primary provider and an optional fallback.
type Controller struct {
	primary  llm.Provider
	fallback llm.Provider // nil when no fallback is configured
	logger   *slog.Logger
}

// New creates a Controller. primary must be non-nil; fallback may be nil.
func New(primary, fallback llm.Provider, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{primary: primary, fallback: fallback, logger: logger}
}

// Ask generates an answer, switching to the fallback after a primary
// failure. Every provider outcome is inspected as an explicit fn.Result so
// the one-shot switch is visible in the control flow rather than hidden in
// error propagation.
func (c *Controller) Ask(ctx context.Context, prompt, contextText string) (string, error) {
	primary := c.tryPrimary(ctx, prompt, contextText)
	if primary.IsOk() {
		return primary.Unwrap()
	}
	_, perr := primary.Unwrap()
	c.logger.Warn("primary provider failed", "provider", c.primary.Name(), "err", perr)

	// A canceled caller never triggers the fallback.
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("failover: %w", err)
	}

	if c.fallback == nil {
		return "", fmt.Errorf("failover: primary %s failed: %w: %w", c.primary.Name(), perr, domain.ErrNoProvider)
	}

	c.logger.Info("switching to fallback provider", "provider", c.fallback.Name())
	answer, err := c.fallback.Generate(ctx, prompt, contextText)
	if err != nil {
		return "", fmt.Errorf("failover: fallback %s: %w", c.fallback.Name(), err)
	}
	return answer, nil
}

// tryPrimary runs the pre-flight check when the primary exposes one, and
// only then the actual generate call. A failed pre-flight skips the network
// attempt entirely.
func (c *Controller) tryPrimary(ctx context.Context, prompt, contextText string) fn.Result[string] {
	if pf, ok := c.primary.(llm.Preflighter); ok {
		if err := pf.Preflight(); err != nil {
			c.logger.Warn("primary pre-flight failed, skipping attempt", "provider", c.primary.Name(), "err", err)
			return fn.Err[string](err)
		}
	}
	return fn.FromPair(c.primary.Generate(ctx, prompt, contextText))
}
