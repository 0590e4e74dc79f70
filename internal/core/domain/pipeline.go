package domain

import "time"

// Stage identifies one step of the ingestion pipeline.
// Stages run in strict order per document; a document is never marked
// complete for a stage it did not finish.
type Stage string

const (
	// StageParse pulls normalised text from the document source.
	StageParse Stage = "parse"

	// StageChunk splits the document into token-bounded chunks.
	StageChunk Stage = "chunk"

	// StageMetadata extracts and enriches document metadata.
	StageMetadata Stage = "metadata"

	// StageEmbed embeds chunks and loads them into the indexes.
	StageEmbed Stage = "embed"
)

// Stages lists all pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageParse, StageChunk, StageMetadata, StageEmbed}
}

// ValidStage reports whether s names a known pipeline stage.
func ValidStage(s Stage) bool {
	switch s {
	case StageParse, StageChunk, StageMetadata, StageEmbed:
		return true
	}
	return false
}

// PipelineState records which ingestion stages have completed for one
// document. It is created on first sight of a document, advanced by a
// single write per stage completion, and never deleted automatically.
type PipelineState struct {
	// DocumentID keys the state record.
	DocumentID string

	// Parsed is true once normalised text has been persisted.
	Parsed bool

	// Chunked is true once chunks have been persisted.
	Chunked bool

	// MetadataDone is true once metadata extraction has been applied.
	MetadataDone bool

	// Embedded is true once vectors and keyword entries are indexed.
	Embedded bool

	// UpdatedAt is the time of the last stage transition.
	UpdatedAt time.Time
}

// Completed reports whether the given stage has finished for this document.
func (s PipelineState) Completed(stage Stage) bool {
	switch stage {
	case StageParse:
		return s.Parsed
	case StageChunk:
		return s.Chunked
	case StageMetadata:
		return s.MetadataDone
	case StageEmbed:
		return s.Embedded
	}
	return false
}

// Eligible reports whether the given stage may run: its predecessor has
// completed and the stage itself has not.
func (s PipelineState) Eligible(stage Stage) bool {
	if s.Completed(stage) {
		return false
	}
	switch stage {
	case StageParse:
		return true
	case StageChunk:
		return s.Parsed
	case StageMetadata:
		return s.Chunked
	case StageEmbed:
		return s.MetadataDone
	}
	return false
}

// Reset clears the completion flag for the given stage and every stage
// after it, so the pipeline re-runs from there. Earlier stages keep
// their completion.
func (s *PipelineState) Reset(stage Stage, at time.Time) {
	clearing := false
	for _, st := range Stages() {
		if st == stage {
			clearing = true
		}
		if !clearing {
			continue
		}
		switch st {
		case StageParse:
			s.Parsed = false
		case StageChunk:
			s.Chunked = false
		case StageMetadata:
			s.MetadataDone = false
		case StageEmbed:
			s.Embedded = false
		}
	}
	s.UpdatedAt = at
}

// MarkCompleted sets the completion flag for the given stage.
func (s *PipelineState) MarkCompleted(stage Stage, at time.Time) {
	switch stage {
	case StageParse:
		s.Parsed = true
	case StageChunk:
		s.Chunked = true
	case StageMetadata:
		s.MetadataDone = true
	case StageEmbed:
		s.Embedded = true
	}
	s.UpdatedAt = at
}

// IngestReport summarises one pipeline run. Individual document failures
// are counted here, never raised to the caller.
type IngestReport struct {
	// RunID identifies the pipeline run.
	RunID string

	// Succeeded counts documents that completed every requested stage.
	Succeeded int

	// Failed counts documents that failed at some stage.
	Failed int

	// Skipped counts documents already past the requested stages.
	Skipped int

	// Failures records the failing stage per document ID.
	Failures map[string]Stage

	// Started and Finished bound the run.
	Started  time.Time
	Finished time.Time
}
