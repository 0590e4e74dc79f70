package driven

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// SparseIndex provides keyword relevance search over chunk text.
// Backed by Bleve with BM25-style scoring.
type SparseIndex interface {
	// Index adds or replaces a chunk in the keyword index.
	Index(ctx context.Context, chunk domain.Chunk) error

	// IndexBatch adds or replaces multiple chunks in one operation.
	IndexBatch(ctx context.Context, chunks []domain.Chunk) error

	// Delete removes a chunk from the index.
	Delete(ctx context.Context, chunkID string) error

	// DeleteByDocument removes all chunks belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search returns the k most relevant chunks for the query text.
	// A non-nil filter restricts candidates by chunk metadata.
	Search(ctx context.Context, query string, k int, filter *domain.Filter) ([]SparseHit, error)

	// Count returns the number of indexed chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// SparseHit represents a keyword search result.
type SparseHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the raw relevance score. Scores are comparable within one
	// result set only; callers normalise before mixing with other signals.
	Score float64
}
