// Package rag orchestrates question answering over the manual index.
// It validates the question, retrieves the most relevant chunks, joins
// them into a context block, and hands the pair to the provider failover
// controller for generation.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/engine/semantic"
	"github.com/manualmind/manualmind-mvp/pkg/fn"
)

// DefaultTopK is how many chunks back an answer.
const DefaultTopK = 3

// Searcher abstracts vector retrieval.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]semantic.ScoredChunk, error)
}

// Generator abstracts the failover controller.
type Generator interface {
	Ask(ctx context.Context, question, contextText string) (string, error)
}

// Service is the QA orchestration service.
type Service struct {
	search Searcher
	gen    Generator
	topK   int
	logger *slog.Logger
}

// New creates a QA Service. topK <= 0 selects DefaultTopK.
func New(search Searcher, gen Generator, topK int, logger *slog.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{search: search, gen: gen, topK: topK, logger: logger}
}

// Answer runs the full QA pipeline for one question. Any stage failure
// aborts the pipeline; there is exactly one failure path per stage.
func (s *Service) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	q := strings.TrimSpace(question)
	s.logger.Info("qa query start", "question_len", len(q))

	results, err := s.search.Search(ctx, q, s.topK)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}
	s.logger.Info("qa retrieval done", "results", len(results))

	text, err := s.gen.Ask(ctx, q, buildContext(results))
	if err != nil {
		return nil, err
	}

	refs := make([]domain.Reference, len(results))
	for i, r := range results {
		refs[i] = domain.NewReference(r.SourcePath, r.PageNumber)
	}
	return &domain.Answer{Text: text, References: refs}, nil
}

// buildContext joins chunk texts in rank order. An empty result set yields
// an empty context; the model then answers from the prompt's instruction
// to admit it found nothing.
func buildContext(results []semantic.ScoredChunk) string {
	parts := fn.Map(results, func(r semantic.ScoredChunk) string { return r.Text })
	return strings.Join(parts, "\n\n")
}
