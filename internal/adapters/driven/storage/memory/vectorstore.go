package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore with
// a brute-force cosine scan. Metadata filtering requires a chunk lookup,
// so the store is constructed over a DocumentStore.
type VectorStore struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	docs    *DocumentStore
}

// NewVectorStore creates a new in-memory vector store. The document
// store is used to resolve chunk metadata for filtered searches; it may
// be nil when filters are not used.
func NewVectorStore(docs *DocumentStore) *VectorStore {
	return &VectorStore{
		vectors: make(map[string][]float32),
		docs:    docs,
	}
}

// Upsert inserts or replaces the vector for the given chunk ID.
func (s *VectorStore) Upsert(_ context.Context, chunkID string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[chunkID] = embedding
	return nil
}

// UpsertBatch inserts or replaces vectors for multiple chunks.
func (s *VectorStore) UpsertBatch(_ context.Context, chunkIDs []string, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("%w: %d ids for %d embeddings", domain.ErrInvalidInput, len(chunkIDs), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, id := range chunkIDs {
		s.vectors[id] = embeddings[i]
	}
	return nil
}

// Delete removes a vector from the store.
func (s *VectorStore) Delete(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, chunkID)
	return nil
}

// DeleteByDocument removes all vectors belonging to a document.
func (s *VectorStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := documentID + ":"
	for id := range s.vectors {
		if strings.HasPrefix(id, prefix) {
			delete(s.vectors, id)
		}
	}
	return nil
}

// Search finds the k nearest neighbours to the query vector by cosine
// similarity.
func (s *VectorStore) Search(
	ctx context.Context, query []float32, k int, filter *domain.Filter,
) ([]driven.VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(s.vectors))
	for id, vec := range s.vectors {
		if filter != nil && s.docs != nil {
			chunk, err := s.docs.GetChunk(ctx, id)
			if err != nil || !filter.Matches(chunk.Metadata) {
				continue
			}
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: cosine(query, vec),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored vectors.
func (s *VectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors), nil
}

// Close releases resources.
func (s *VectorStore) Close() error {
	return nil
}

// cosine computes the cosine similarity between two vectors. Mismatched
// lengths or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
