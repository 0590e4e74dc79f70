package driven

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// PostProcessor transforms a document after parsing and before indexing.
// Processors run in a fixed order; each receives the chunks produced so
// far and returns the set to carry forward.
type PostProcessor interface {
	// Process transforms the document's chunks.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)

	// Name identifies the processor for logging.
	Name() string
}
