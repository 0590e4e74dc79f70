package driven

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// DocumentSource enumerates and reads raw documents for ingestion.
// Backed by a filesystem directory of plain-text files.
type DocumentSource interface {
	// List returns the IDs of every document the source currently holds.
	List(ctx context.Context) ([]string, error)

	// Fetch reads one document by ID. The returned document carries
	// normalised text and whatever metadata the source can supply.
	Fetch(ctx context.Context, id string) (*domain.Document, error)

	// Watch reports document IDs as they appear or change, until the
	// context is cancelled. Optional: sources that cannot watch return
	// domain.ErrInvalidInput.
	Watch(ctx context.Context) (<-chan string, error)
}
