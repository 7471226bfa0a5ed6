// Package domain defines the core types shared by the ingestion and
// question-answering pipelines, and acts as the validation gate at the
// API entry points.
package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// PageRecord is one physical page of an extracted PDF: its text plus the
// provenance needed for citations later.
type PageRecord struct {
	Text       string `json:"text"`
	SourcePath string `json:"source_path"`
	PageNumber int    `json:"page_number"`
}

// Chunk is a bounded slice of page text with provenance metadata. It is the
// unit of embedding, storage, and retrieval. SourcePath and PageNumber must
// survive the full ingest -> retrieve -> reference round-trip unchanged.
type Chunk struct {
	Text        string `json:"text"`
	SourcePath  string `json:"source_path"`
	PageNumber  int    `json:"page_number"`
	StartOffset int    `json:"start_offset"`
}

// Reference is a display-only citation derived from a retrieved chunk's
// metadata. It is rebuilt per query and never persisted.
type Reference struct {
	SourceName string `json:"source_name"`
	PageNumber int    `json:"page_number"`
}

// NewReference builds a Reference from chunk provenance. Missing metadata
// falls back to "Manual" for the source; a non-positive page renders as N/A.
func NewReference(sourcePath string, pageNumber int) Reference {
	name := "Manual"
	if sourcePath != "" {
		name = filepath.Base(sourcePath)
	}
	return Reference{SourceName: name, PageNumber: pageNumber}
}

// String renders the citation in the user-facing format.
func (r Reference) String() string {
	page := "N/A"
	if r.PageNumber > 0 {
		page = strconv.Itoa(r.PageNumber)
	}
	return fmt.Sprintf("Source: %s (Page %s)", r.SourceName, page)
}

// Answer is the outcome of one question: the generated text plus citations
// in retrieval rank order.
type Answer struct {
	Text       string      `json:"answer"`
	References []Reference `json:"references"`
}

// ReferenceStrings returns the formatted citations in order.
func (a Answer) ReferenceStrings() []string {
	out := make([]string, len(a.References))
	for i, r := range a.References {
		out[i] = r.String()
	}
	return out
}
