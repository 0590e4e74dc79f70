package services

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// fastRetry keeps test retries from sleeping.
func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, InitialDelay: 1, Multiplier: 1, MaxDelay: 1}
}

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Vectors are looked up by text; unknown text gets the default vector.
type mockEmbeddingService struct {
	vectors    map[string][]float32
	defaultVec []float32
	embedErr   error
	calls      int
}

func (m *mockEmbeddingService) vecFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	if m.defaultVec != nil {
		return m.defaultVec
	}
	return []float32{1, 0, 0}
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vecFor(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vecFor(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return 3 }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	hits      []driven.VectorHit
	searchErr error

	mu       sync.Mutex
	upserted map[string][]float32
}

func (m *mockVectorStore) Upsert(_ context.Context, chunkID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upserted == nil {
		m.upserted = make(map[string][]float32)
	}
	m.upserted[chunkID] = embedding
	return nil
}

func (m *mockVectorStore) UpsertBatch(ctx context.Context, chunkIDs []string, embeddings [][]float32) error {
	for i := range chunkIDs {
		if err := m.Upsert(ctx, chunkIDs[i], embeddings[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockVectorStore) Delete(_ context.Context, _ string) error           { return nil }
func (m *mockVectorStore) DeleteByDocument(_ context.Context, _ string) error { return nil }

func (m *mockVectorStore) Search(_ context.Context, _ []float32, k int, _ *domain.Filter) ([]driven.VectorHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockVectorStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserted), nil
}

func (m *mockVectorStore) Close() error { return nil }

// mockSparseIndex implements driven.SparseIndex for testing.
type mockSparseIndex struct {
	hits      []driven.SparseHit
	searchErr error
	indexErr  error

	mu      sync.Mutex
	indexed []domain.Chunk
}

func (m *mockSparseIndex) Index(_ context.Context, chunk domain.Chunk) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, chunk)
	return nil
}

func (m *mockSparseIndex) IndexBatch(ctx context.Context, chunks []domain.Chunk) error {
	for _, c := range chunks {
		if err := m.Index(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockSparseIndex) Delete(_ context.Context, _ string) error           { return nil }
func (m *mockSparseIndex) DeleteByDocument(_ context.Context, _ string) error { return nil }

func (m *mockSparseIndex) Search(_ context.Context, _ string, k int, _ *domain.Filter) ([]driven.SparseHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:k], nil
}

func (m *mockSparseIndex) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.indexed), nil
}

func (m *mockSparseIndex) Close() error { return nil }

// mockLLMService implements driven.LLMService for testing.
// Responses are matched by prompt substring, in order.
type mockLLMService struct {
	responses map[string]string // prompt substring -> response
	response  string            // fallback response
	err       error
	calls     []string
}

func (m *mockLLMService) Complete(_ context.Context, prompt string, _ driven.CompleteOptions) (string, error) {
	m.calls = append(m.calls, prompt)
	if m.err != nil {
		return "", m.err
	}
	for sub, resp := range m.responses {
		if strings.Contains(prompt, sub) {
			return resp, nil
		}
	}
	return m.response, nil
}

func (m *mockLLMService) ModelName() string            { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

// mockRetriever implements Retriever for testing AskService in isolation.
type mockRetriever struct {
	candidates []domain.Candidate
	err        error
	lastQuery  string
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, _ domain.RetrievalOptions) ([]domain.Candidate, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

// mockSource implements driven.DocumentSource for testing.
type mockSource struct {
	docs     map[string]*domain.Document
	fetchErr map[string]error
}

func (m *mockSource) List(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *mockSource) Fetch(_ context.Context, id string) (*domain.Document, error) {
	if err := m.fetchErr[id]; err != nil {
		return nil, err
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (m *mockSource) Watch(_ context.Context) (<-chan string, error) {
	return nil, domain.ErrInvalidInput
}
