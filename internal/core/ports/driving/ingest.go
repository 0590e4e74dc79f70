package driving

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// IngestService runs the staged ingestion pipeline.
type IngestService interface {
	// Ingest runs the pipeline for all documents the source holds.
	// Completed stages are skipped; each document resumes from its
	// first incomplete stage. Per-document failures are recorded in
	// the report and never abort the run.
	Ingest(ctx context.Context, opts IngestOptions) (*domain.IngestReport, error)

	// IngestDocument runs the pipeline for a single document.
	IngestDocument(ctx context.Context, documentID string, opts IngestOptions) error

	// Status reports the pipeline state of every known document.
	Status(ctx context.Context) ([]domain.PipelineState, error)
}

// IngestOptions selects which stages run and for which documents.
type IngestOptions struct {
	// OnlyStage restricts the run to a single stage, resetting that
	// stage and its successors first. Empty runs all incomplete stages.
	OnlyStage domain.Stage

	// Force discards all recorded progress and re-runs every stage.
	Force bool

	// Workers bounds concurrent document processing. Zero means the
	// service default.
	Workers int
}
