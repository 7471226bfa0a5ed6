// Package llm defines the language-model provider seam and its two concrete
// backends: a cloud chat-completions API and a locally hosted model. Both
// render the same fixed prompt template and differ only in transport and
// failure modes.
package llm

import (
	"context"
	"strings"
)

// Provider generates a grounded answer from a question and retrieved context.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string
	// Generate produces an answer to prompt using only contextText.
	Generate(ctx context.Context, prompt, contextText string) (string, error)
}

// Preflighter is an optional cheap usability check a Provider may expose.
// A non-nil error means a Generate attempt would certainly fail, which lets
// the failover controller skip the network round-trip entirely.
type Preflighter interface {
	Preflight() error
}

// NotFound is the sentinel the model must emit verbatim when the answer is
// not derivable from the supplied context.
const NotFound = "Information not found."

const answerTemplate = `You are a technical specialist for industrial equipment manuals.
Answer the question strictly using the context provided below.

RULES:
1. Language: answer in the EXACT SAME language as the question.
2. Source: use ONLY the provided context. Do not use outside knowledge.
3. Format: plain text only. No markdown, no bold, no symbols.
4. If the answer is NOT in the context, your response MUST BE EXACTLY: "` + NotFound + `"
5. Do not explain the rules.

CONTEXT:
{context}

QUESTION:
{question}

FINAL ANSWER:
`

// BuildPrompt renders the fixed answer template with the retrieved context
// and the user question.
func BuildPrompt(contextText, question string) string {
	r := strings.NewReplacer("{context}", contextText, "{question}", question)
	return r.Replace(answerTemplate)
}
