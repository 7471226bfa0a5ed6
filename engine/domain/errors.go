package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy. Callers match these
// with errors.Is after unwrapping.
var (
	// ErrExtraction marks an unreadable or malformed input file. Never
	// retried: bad input is not transient.
	ErrExtraction = errors.New("pdf extraction failed")

	// ErrChunkConfig marks invalid chunking parameters. Fatal at
	// construction time.
	ErrChunkConfig = errors.New("invalid chunking configuration")

	// ErrIndex marks a vector index storage failure. Ingestion of the
	// affected file is considered failed; the caller may re-ingest.
	ErrIndex = errors.New("vector index failure")

	// ErrCredentialMissing is a provider pre-flight failure: no credential
	// configured, so no network attempt is made.
	ErrCredentialMissing = errors.New("provider credential missing")

	// ErrGeneration marks a provider network/timeout/model error.
	ErrGeneration = errors.New("generation failed")

	// ErrNoProvider is terminal: the primary failed and no fallback is
	// configured.
	ErrNoProvider = errors.New("no language model provider available")
)

// Question validation sentinels.
var (
	ErrQuestionEmpty     = errors.New("question is empty")
	ErrQuestionTooShort  = errors.New("question too short")
	ErrQuestionInjection = errors.New("question contains suspicious content")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
