// Package ingest provides the ingestion pipeline that turns a PDF manual
// into indexed chunks: extraction, chunking, and vector storage stages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manualmind/manualmind-mvp/engine/chunker"
	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/pkg/fn"
)

// Extractor pulls per-page text out of a source file.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]domain.PageRecord, error)
}

// Index persists chunks into the vector store.
type Index interface {
	Add(ctx context.Context, chunks []domain.Chunk) error
	DeleteBySource(ctx context.Context, sourcePath string) error
}

// Service runs source files through the ingestion pipeline.
type Service struct {
	pipeline fn.Stage[Job, Report]
	index    Index
	logger   *slog.Logger
}

// New wires the extract, chunk, and store stages into a Service. splitter
// may be nil, in which case the default window is used.
func New(extractor Extractor, splitter *chunker.Splitter, index Index, logger *slog.Logger) *Service {
	if splitter == nil {
		splitter = chunker.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	extract := fn.TracedStage("ingest.extract", newExtract(extractor))
	chunk := fn.TracedStage("ingest.chunk", newChunk(splitter))
	store := fn.TracedStage("ingest.store", newStore(index))

	chunkLog := fn.TapStage(func(_ context.Context, cf chunkedFile) {
		logger.Debug("chunked", "source", cf.sourcePath, "pages", cf.pages, "chunks", len(cf.chunks))
	})

	return &Service{
		pipeline: fn.Then(fn.Then(fn.Then(extract, chunk), chunkLog), store),
		index:    index,
		logger:   logger,
	}
}

// IngestFile pushes one file through the full pipeline and reports how
// many chunks were indexed. A stage failure aborts the rest of the
// pipeline and surfaces that stage's error.
func (s *Service) IngestFile(ctx context.Context, path string) (Report, error) {
	return s.run(ctx, Job{SourcePath: path})
}

// Run executes a Job, honouring its Replace flag.
func (s *Service) Run(ctx context.Context, job Job) (Report, error) {
	if job.Replace {
		if err := s.index.DeleteBySource(ctx, job.SourcePath); err != nil {
			return Report{}, fmt.Errorf("ingest: replace %s: %w", job.SourcePath, err)
		}
	}
	return s.run(ctx, job)
}

func (s *Service) run(ctx context.Context, job Job) (Report, error) {
	start := time.Now()
	report, err := s.pipeline(ctx, job).Unwrap()
	if err != nil {
		s.logger.Error("ingest failed", "source", job.SourcePath, "error", err)
		return Report{}, err
	}
	s.logger.Info("ingest done",
		"source", report.SourcePath,
		"pages", report.Pages,
		"chunks", report.Chunks,
		"duration", time.Since(start),
	)
	return report, nil
}

// --- Pipeline stages ---

type extracted struct {
	sourcePath string
	pages      []domain.PageRecord
}

func newExtract(extractor Extractor) fn.Stage[Job, extracted] {
	return func(ctx context.Context, job Job) fn.Result[extracted] {
		pages, err := extractor.Extract(ctx, job.SourcePath)
		if err != nil {
			return fn.Err[extracted](err)
		}
		return fn.Ok(extracted{sourcePath: job.SourcePath, pages: pages})
	}
}

func newChunk(splitter *chunker.Splitter) fn.Stage[extracted, chunkedFile] {
	return fn.MapStage(func(ex extracted) chunkedFile {
		return chunkedFile{
			sourcePath: ex.sourcePath,
			pages:      len(ex.pages),
			chunks:     splitter.Split(ex.pages),
		}
	})
}

func newStore(index Index) fn.Stage[chunkedFile, Report] {
	return func(ctx context.Context, cf chunkedFile) fn.Result[Report] {
		if err := index.Add(ctx, cf.chunks); err != nil {
			return fn.Err[Report](err)
		}
		return fn.Ok(Report{
			SourcePath: cf.sourcePath,
			Pages:      cf.pages,
			Chunks:     len(cf.chunks),
		})
	}
}
