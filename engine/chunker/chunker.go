// Package chunker splits extracted manual pages into overlapping text chunks
// sized for embedding. Chunks are contiguous slices of the original page text
// so provenance offsets stay exact.
package chunker

import (
	"fmt"

	"github.com/manualmind/manualmind-mvp/engine/domain"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultOverlap is the number of characters shared between adjacent chunks.
	DefaultOverlap = 200
)

// Splitter performs sliding-window chunking with a natural-boundary
// preference (paragraph > sentence > word > character). The source text is
// never modified, only sliced, so concatenating chunks minus their overlap
// regions reconstructs the page exactly.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a Splitter. chunkSize must be positive and strictly greater
// than overlap; anything else is a configuration error.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunker: chunk size %d: %w", chunkSize, domain.ErrChunkConfig)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap %d: %w", overlap, domain.ErrChunkConfig)
	}
	if chunkSize <= overlap {
		return nil, fmt.Errorf("chunker: chunk size %d <= overlap %d: %w", chunkSize, overlap, domain.ErrChunkConfig)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Default returns a Splitter with the standard 1000/200 window.
func Default() *Splitter {
	s, _ := New(DefaultChunkSize, DefaultOverlap)
	return s
}

// Split chunks each page independently, preserving the page's SourcePath and
// PageNumber on every chunk it produces. StartOffset is the chunk's starting
// character (rune) position within its page text and is monotonically
// non-decreasing across the chunks of a page. Empty pages yield no chunks; a
// page shorter than the chunk size yields exactly one.
func (s *Splitter) Split(pages []domain.PageRecord) []domain.Chunk {
	var chunks []domain.Chunk
	for _, page := range pages {
		chunks = append(chunks, s.splitPage(page)...)
	}
	return chunks
}

func (s *Splitter) splitPage(page domain.PageRecord) []domain.Chunk {
	runes := []rune(page.Text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []domain.Chunk
	start := 0
	for {
		end := start + s.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.cutPoint(runes, start, end)
		}

		chunks = append(chunks, domain.Chunk{
			Text:        string(runes[start:end]),
			SourcePath:  page.SourcePath,
			PageNumber:  page.PageNumber,
			StartOffset: start,
		})

		if end == len(runes) {
			break
		}
		// The next chunk begins overlap characters before this one ended.
		start = end - s.overlap
	}
	return chunks
}

// cutPoint picks where to end a chunk that would otherwise be hard-cut at
// hardEnd. Candidates must lie strictly after start+overlap so the window
// always advances. Preference order: paragraph break, sentence end, word
// break, then the hard character cut.
func (s *Splitter) cutPoint(runes []rune, start, hardEnd int) int {
	lo := start + s.overlap + 1

	for j := hardEnd; j > lo; j-- {
		if j >= 2 && runes[j-1] == '\n' && runes[j-2] == '\n' {
			return j
		}
	}
	for j := hardEnd; j > lo; j-- {
		r := runes[j-1]
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			return j
		}
	}
	for j := hardEnd; j > lo; j-- {
		if runes[j-1] == ' ' || runes[j-1] == '\t' {
			return j
		}
	}
	return hardEnd
}
