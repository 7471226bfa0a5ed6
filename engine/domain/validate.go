package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns: SQL/template fragments that should never appear in
// a user question.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

const minQuestionLength = 3

// ValidateQuestion checks a user question before retrieval.
func ValidateQuestion(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return NewValidationError("question", q, ErrQuestionEmpty)
	}
	if utf8.RuneCountInString(trimmed) < minQuestionLength {
		return NewValidationError("question", q, ErrQuestionTooShort)
	}
	for _, p := range injectionPatterns {
		if p.MatchString(trimmed) {
			return NewValidationError("question", q, ErrQuestionInjection)
		}
	}
	return nil
}
