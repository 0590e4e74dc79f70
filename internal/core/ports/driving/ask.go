package driving

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// AskService answers questions over the indexed corpus.
type AskService interface {
	// Ask retrieves relevant passages and synthesises a cited answer.
	// Returns domain.ErrNoResults when the corpus yields no passages.
	Ask(ctx context.Context, question string, opts domain.RetrievalOptions) (*domain.Answer, error)

	// Retrieve returns ranked passages without answer synthesis.
	Retrieve(ctx context.Context, question string, opts domain.RetrievalOptions) ([]domain.Passage, error)
}
