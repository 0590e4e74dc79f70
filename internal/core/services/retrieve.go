package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// RetrieverService performs hybrid retrieval: dense similarity search and
// sparse keyword search over the same corpus, fused into one ranked
// candidate list.
type RetrieverService struct {
	docStore    driven.DocumentStore
	vectorStore driven.VectorStore
	sparseIndex driven.SparseIndex
	embedding   driven.EmbeddingService
	retryPolicy retry.Policy
}

// NewRetrieverService creates a new retriever service.
// All dependencies are required.
func NewRetrieverService(
	docStore driven.DocumentStore,
	vectorStore driven.VectorStore,
	sparseIndex driven.SparseIndex,
	embedding driven.EmbeddingService,
) *RetrieverService {
	return &RetrieverService{
		docStore:    docStore,
		vectorStore: vectorStore,
		sparseIndex: sparseIndex,
		embedding:   embedding,
		retryPolicy: retry.DefaultPolicy(),
	}
}

// SetRetryPolicy overrides the backoff schedule for outbound calls.
func (s *RetrieverService) SetRetryPolicy(p retry.Policy) {
	s.retryPolicy = p
}

// Retrieve returns up to n_candidates chunks ranked by fused score.
// Candidates are ephemeral: each call builds a fresh set and nothing is
// cached across queries.
func (s *RetrieverService) Retrieve(
	ctx context.Context, query string, opts domain.RetrievalOptions,
) ([]domain.Candidate, error) {
	logger.Section("Hybrid Retrieval")

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("retrieve: %w: empty query", domain.ErrInvalidInput)
	}
	if s.vectorStore == nil {
		return nil, fmt.Errorf("retrieve: %w", domain.ErrVectorStoreUnavailable)
	}
	if s.sparseIndex == nil {
		return nil, fmt.Errorf("retrieve: %w", domain.ErrSparseIndexUnavailable)
	}
	if s.embedding == nil {
		return nil, fmt.Errorf("retrieve: %w", domain.ErrEmbeddingUnavailable)
	}

	n := opts.EffectiveNCandidates()
	alpha := opts.EffectiveAlpha()
	logger.Debug("Query: %q, n_candidates: %d, alpha: %.2f", query, n, alpha)

	queryVec, err := retry.DoValue(ctx, s.retryPolicy, "embed query", func() ([]float32, error) {
		return s.embedding.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Dense and sparse searches are independent; run them in parallel.
	var denseHits []driven.VectorHit
	var sparseHits []driven.SparseHit
	var denseErr, sparseErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		denseHits, denseErr = s.vectorStore.Search(ctx, queryVec, n, opts.Filter)
	}()
	go func() {
		defer wg.Done()
		sparseHits, sparseErr = s.sparseIndex.Search(ctx, query, n, opts.Filter)
	}()
	wg.Wait()

	if denseErr != nil {
		return nil, fmt.Errorf("dense search: %w", denseErr)
	}
	if sparseErr != nil {
		// A term-sparse query may legitimately match nothing; only a real
		// index failure degrades to pure dense ranking.
		logger.Warn("Sparse search failed, ranking on dense scores only: %v", sparseErr)
		sparseHits = nil
	}
	logger.Debug("Dense hits: %d, sparse hits: %d", len(denseHits), len(sparseHits))

	candidates := fuseScores(denseHits, sparseHits, alpha)
	if len(candidates) == 0 {
		return nil, nil
	}
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	hydrated, err := s.hydrate(ctx, candidates)
	if err != nil {
		return nil, err
	}
	logger.Info("Retrieved %d candidates", len(hydrated))
	return hydrated, nil
}

// fuseScores unions dense and sparse hits, min-max normalises each score
// vector over the candidate set, and combines them as
// alpha*dense + (1-alpha)*sparse. The result is sorted by fused score
// descending, ties broken by dense score descending, then chunk ID
// ascending for determinism.
func fuseScores(denseHits []driven.VectorHit, sparseHits []driven.SparseHit, alpha float64) []domain.Candidate {
	dense := make(map[string]float64, len(denseHits))
	for _, h := range denseHits {
		dense[h.ChunkID] = h.Similarity
	}
	sparse := make(map[string]float64, len(sparseHits))
	for _, h := range sparseHits {
		sparse[h.ChunkID] = h.Score
	}

	ids := make([]string, 0, len(dense)+len(sparse))
	for id := range dense {
		ids = append(ids, id)
	}
	for id := range sparse {
		if _, ok := dense[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	denseNorm := minMaxNormalise(ids, dense)
	sparseNorm := minMaxNormalise(ids, sparse)

	out := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Candidate{
			Chunk:  domain.Chunk{ID: id},
			Dense:  dense[id],
			Sparse: sparse[id],
			Fused:  alpha*denseNorm[id] + (1-alpha)*sparseNorm[id],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Fused != out[j].Fused {
			return out[i].Fused > out[j].Fused
		}
		if out[i].Dense != out[j].Dense {
			return out[i].Dense > out[j].Dense
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out
}

// minMaxNormalise maps scores into [0,1] over the given candidate set.
// IDs absent from scores count as 0. A degenerate set where every score
// is identical normalises to 0 for all, so the signal carries no weight.
func minMaxNormalise(ids []string, scores map[string]float64) map[string]float64 {
	min, max := 0.0, 0.0
	first := true
	for _, id := range ids {
		v := scores[id]
		if first {
			min, max = v, v
			first = false
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make(map[string]float64, len(ids))
	if max == min {
		for _, id := range ids {
			out[id] = 0
		}
		return out
	}
	for _, id := range ids {
		out[id] = (scores[id] - min) / (max - min)
	}
	return out
}

// hydrate replaces candidate chunk stubs with full chunks from the
// document store. Chunks deleted since indexing are dropped silently.
func (s *RetrieverService) hydrate(ctx context.Context, candidates []domain.Candidate) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		chunk, err := s.docStore.GetChunk(ctx, c.Chunk.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				logger.Debug("Chunk %s no longer stored, skipping", c.Chunk.ID)
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", c.Chunk.ID, err)
		}
		c.Chunk = *chunk
		out = append(out, c)
	}
	return out, nil
}
