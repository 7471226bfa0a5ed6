package ingest

import "github.com/manualmind/manualmind-mvp/engine/domain"

// Job is one queued ingestion request. Replace asks the worker to drop any
// previously indexed points for the source before re-adding it.
type Job struct {
	SourcePath string `json:"source_path"`
	Replace    bool   `json:"replace,omitempty"`
}

// Report summarises a completed ingestion.
type Report struct {
	SourcePath string `json:"source_path"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
}

// chunkedFile carries chunks between the chunk and store stages.
type chunkedFile struct {
	sourcePath string
	pages      int
	chunks     []domain.Chunk
}
