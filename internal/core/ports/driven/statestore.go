package driven

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// StateStore persists per-document pipeline progress so interrupted runs
// resume from the last completed stage instead of starting over.
type StateStore interface {
	// GetState retrieves the pipeline state for a document.
	// Returns domain.ErrNotFound when the document has never been seen.
	GetState(ctx context.Context, documentID string) (*domain.PipelineState, error)

	// SaveState stores or updates the pipeline state for a document.
	SaveState(ctx context.Context, state *domain.PipelineState) error

	// ResetStage clears the completion flag for one stage, and every
	// later stage, across all documents. Used by single-stage re-runs.
	ResetStage(ctx context.Context, stage domain.Stage) error

	// ResetAll clears all pipeline state. Used by force re-ingestion.
	ResetAll(ctx context.Context) error

	// ListStates returns the pipeline state of every known document.
	ListStates(ctx context.Context) ([]domain.PipelineState, error)
}
