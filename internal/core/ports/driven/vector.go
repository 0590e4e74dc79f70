package driven

import (
	"context"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// VectorStore provides vector persistence and similarity search.
// Backed by SQLite with a brute-force cosine scan.
type VectorStore interface {
	// Upsert inserts or replaces the vector for the given chunk ID.
	Upsert(ctx context.Context, chunkID string, embedding []float32) error

	// UpsertBatch inserts or replaces vectors for multiple chunks.
	// chunkIDs[i] pairs with embeddings[i].
	UpsertBatch(ctx context.Context, chunkIDs []string, embeddings [][]float32) error

	// Delete removes a vector from the store.
	Delete(ctx context.Context, chunkID string) error

	// DeleteByDocument removes all vectors belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Search finds the k nearest neighbours to the query vector by cosine
	// similarity. A non-nil filter restricts candidates by chunk metadata
	// before ranking, so k survivors are still returned when they exist.
	Search(ctx context.Context, query []float32, k int, filter *domain.Filter) ([]VectorHit, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}
