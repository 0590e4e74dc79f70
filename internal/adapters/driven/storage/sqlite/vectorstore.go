package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
)

// Ensure vectorStore implements the interface.
var _ driven.VectorStore = (*vectorStore)(nil)

// vectorStore is the SQLite-backed VectorStore. Search loads every stored
// vector and ranks by cosine similarity; fine for corpora in the tens of
// thousands of chunks.
type vectorStore struct {
	store *Store
}

// Upsert inserts or replaces the vector for the given chunk ID.
func (s *vectorStore) Upsert(ctx context.Context, chunkID string, embedding []float32) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO vectors (chunk_id, document_id, embedding)
		VALUES (?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			embedding = excluded.embedding
	`, chunkID, documentIDOf(chunkID), float32SliceToBytes(embedding))
	if err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}
	return nil
}

// UpsertBatch inserts or replaces vectors for multiple chunks.
func (s *vectorStore) UpsertBatch(ctx context.Context, chunkIDs []string, embeddings [][]float32) error {
	if len(chunkIDs) != len(embeddings) {
		return fmt.Errorf("%w: %d chunk IDs for %d embeddings",
			domain.ErrInvalidInput, len(chunkIDs), len(embeddings))
	}
	if len(chunkIDs) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (chunk_id, document_id, embedding)
		VALUES (?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, chunkID := range chunkIDs {
		if _, err := stmt.ExecContext(ctx, chunkID, documentIDOf(chunkID),
			float32SliceToBytes(embeddings[i])); err != nil {
			return fmt.Errorf("upserting vector for %s: %w", chunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete removes a vector from the store.
func (s *vectorStore) Delete(ctx context.Context, chunkID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE chunk_id = ?", chunkID); err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}
	return nil
}

// DeleteByDocument removes all vectors belonging to a document.
func (s *vectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Search finds the k nearest neighbours to the query vector by cosine
// similarity. Filtering happens before ranking so the top k after a
// filter are still filled when matches exist.
func (s *vectorStore) Search(ctx context.Context, query []float32, k int, filter *domain.Filter) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.embedding, COALESCE(c.metadata, '{}')
		FROM vectors v
		LEFT JOIN chunks c ON c.id = v.chunk_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var chunkID string
		var blob []byte
		var metadataJSON string
		if err := rows.Scan(&chunkID, &blob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}

		if filter != nil {
			var meta domain.Metadata
			if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
				return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
			}
			if !filter.Matches(meta) {
				continue
			}
		}

		sim := cosineSimilarity(query, bytesToFloat32Slice(blob))
		hits = append(hits, driven.VectorHit{ChunkID: chunkID, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
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
func (s *vectorStore) Count(ctx context.Context) (int, error) {
	var n int
	row := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors")
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close is a no-op; the shared Store owns the database handle.
func (s *vectorStore) Close() error {
	return nil
}

// documentIDOf recovers the document ID from a chunk ID of the form
// "documentID:ordinal".
func documentIDOf(chunkID string) string {
	if i := strings.LastIndex(chunkID, ":"); i >= 0 {
		return chunkID[:i]
	}
	return chunkID
}

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths or zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
