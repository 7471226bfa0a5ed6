// Package extract converts PDF files on disk into ordered page records.
// It is the only place that touches the PDF parser; everything downstream
// works on domain.PageRecord.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/manualmind/manualmind-mvp/engine/domain"
)

// Extractor reads a PDF and emits one PageRecord per physical page, in page
// order, each stamped with the source path for provenance.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract parses the PDF at path. Unreadable or malformed files fail with an
// error wrapping domain.ErrExtraction; malformed input is never retried.
func (e *Extractor) Extract(ctx context.Context, path string) (records []domain.PageRecord, err error) {
	// The parser panics on some corrupt files; convert that to ErrExtraction.
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("extract: parse %s: panic: %v: %w", path, r, domain.ErrExtraction)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open %s: %v: %w", path, err, domain.ErrExtraction)
	}
	defer f.Close()

	total := reader.NumPage()
	records = make([]domain.PageRecord, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extract: %s: %w", path, err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract: page %d of %s: %v: %w", i, path, err, domain.ErrExtraction)
		}
		records = append(records, domain.PageRecord{
			Text:       text,
			SourcePath: path,
			PageNumber: i,
		})
	}

	e.logger.Info("extract: done", "path", path, "pages", len(records))
	return records, nil
}
