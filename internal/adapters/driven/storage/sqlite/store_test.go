package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "quaero-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// saveTestDocument stores a document with the given ID and metadata.
func saveTestDocument(t *testing.T, store *Store, docID string, meta domain.Metadata) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:        docID,
		Text:      "capacity fade in lithium ion cells",
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.DocumentStore().SaveDocument(context.Background(), doc))
}

// ==================== Store Creation Tests ====================

func TestNewStoreCreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "quaero-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening must re-run migrate without error.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

// ==================== Document Store Tests ====================

func TestDocumentRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	meta := domain.Metadata{
		Title:     "Capacity Fade Mechanisms",
		Authors:   []string{"Doe, Jane"},
		Year:      "2020",
		Venue:     "Journal of Power Sources",
		DOI:       "10.1016/j.jpowsour.2020.000001",
		Tags:      []string{"NMC", "degradation"},
		PaperType: "experimental",
	}
	saveTestDocument(t, store, "fade", meta)

	got, err := store.DocumentStore().GetDocument(ctx, "fade")
	require.NoError(t, err)
	assert.Equal(t, "fade", got.ID)
	assert.Equal(t, meta, got.Metadata)
}

func TestGetDocumentNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveDocumentUpserts(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	saveTestDocument(t, store, "fade", domain.Metadata{Title: "v1"})
	saveTestDocument(t, store, "fade", domain.Metadata{Title: "v2"})

	got, err := store.DocumentStore().GetDocument(ctx, "fade")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Metadata.Title)

	docs, err := store.DocumentStore().ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestSaveChunksReplacesPreviousSet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	saveTestDocument(t, store, "fade", domain.Metadata{})

	first := []domain.Chunk{
		{ID: "fade:0", DocumentID: "fade", Ordinal: 0, Text: "a", TokenCount: 1},
		{ID: "fade:1", DocumentID: "fade", Ordinal: 1, Text: "b", TokenCount: 1},
		{ID: "fade:2", DocumentID: "fade", Ordinal: 2, Text: "c", TokenCount: 1},
	}
	require.NoError(t, docs.SaveChunks(ctx, first))

	// A re-chunk with fewer chunks must not leave stale rows behind.
	second := []domain.Chunk{
		{ID: "fade:0", DocumentID: "fade", Ordinal: 0, Text: "ab", TokenCount: 2},
	}
	require.NoError(t, docs.SaveChunks(ctx, second))

	got, err := docs.GetChunks(ctx, "fade")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ab", got[0].Text)

	n, err := docs.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetChunkNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().GetChunk(context.Background(), "missing:0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateMetadataPropagatesToChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	saveTestDocument(t, store, "fade", domain.Metadata{})
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "fade:0", DocumentID: "fade", Ordinal: 0, Text: "a"},
		{ID: "fade:1", DocumentID: "fade", Ordinal: 1, Text: "b"},
	}))

	meta := domain.Metadata{Title: "Enriched", DOI: "10.1000/x", Tags: []string{"LFP"}}
	require.NoError(t, docs.UpdateMetadata(ctx, "fade", meta))

	doc, err := docs.GetDocument(ctx, "fade")
	require.NoError(t, err)
	assert.Equal(t, "Enriched", doc.Metadata.Title)

	chunk, err := docs.GetChunk(ctx, "fade:1")
	require.NoError(t, err)
	assert.Equal(t, meta, chunk.Metadata)
}

func TestUpdateMetadataUnknownDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.DocumentStore().UpdateMetadata(context.Background(), "missing", domain.Metadata{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	saveTestDocument(t, store, "fade", domain.Metadata{})
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "fade:0", DocumentID: "fade", Ordinal: 0, Text: "a"},
	}))

	require.NoError(t, docs.DeleteDocument(ctx, "fade"))

	_, err := docs.GetDocument(ctx, "fade")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	n, err := docs.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// ==================== State Store Tests ====================

func TestStateRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	states := store.StateStore()

	_, err := states.GetState(ctx, "fade")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	state := &domain.PipelineState{
		DocumentID: "fade",
		Parsed:     true,
		Chunked:    true,
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, states.SaveState(ctx, state))

	got, err := states.GetState(ctx, "fade")
	require.NoError(t, err)
	assert.True(t, got.Parsed)
	assert.True(t, got.Chunked)
	assert.False(t, got.MetadataDone)
	assert.False(t, got.Embedded)
}

func TestResetStageClearsSuccessors(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	states := store.StateStore()

	now := time.Now().UTC().Truncate(time.Second)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, states.SaveState(ctx, &domain.PipelineState{
			DocumentID:   id,
			Parsed:       true,
			Chunked:      true,
			MetadataDone: true,
			Embedded:     true,
			UpdatedAt:    now,
		}))
	}

	require.NoError(t, states.ResetStage(ctx, domain.StageChunk))

	all, err := states.ListStates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, s := range all {
		assert.True(t, s.Parsed)
		assert.False(t, s.Chunked)
		assert.False(t, s.MetadataDone)
		assert.False(t, s.Embedded)
	}
}

func TestResetStageUnknown(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.StateStore().ResetStage(context.Background(), domain.Stage("bogus"))
	assert.ErrorIs(t, err, domain.ErrUnknownStage)
}

func TestResetAll(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	states := store.StateStore()

	require.NoError(t, states.SaveState(ctx, &domain.PipelineState{
		DocumentID: "fade",
		Parsed:     true,
		UpdatedAt:  time.Now(),
	}))

	require.NoError(t, states.ResetAll(ctx))

	all, err := states.ListStates(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// ==================== Vector Store Tests ====================

func TestVectorSearchRanksByCosine(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	vectors := store.VectorStore()

	require.NoError(t, vectors.UpsertBatch(ctx,
		[]string{"fade:0", "plating:0", "thermal:0"},
		[][]float32{
			{1, 0, 0},
			{0, 1, 0},
			{0.9, 0.1, 0},
		}))

	hits, err := vectors.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "fade:0", hits[0].ChunkID)
	assert.Equal(t, "thermal:0", hits[1].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestVectorSearchFilterByMetadata(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	docs := store.DocumentStore()

	saveTestDocument(t, store, "fade", domain.Metadata{})
	saveTestDocument(t, store, "plating", domain.Metadata{})
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "fade:0", DocumentID: "fade", Ordinal: 0, Text: "a",
			Metadata: domain.Metadata{Tags: []string{"NMC"}, Year: "2019"}},
	}))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: "plating:0", DocumentID: "plating", Ordinal: 0, Text: "b",
			Metadata: domain.Metadata{Tags: []string{"LFP"}, Year: "2021"}},
	}))

	vectors := store.VectorStore()
	require.NoError(t, vectors.UpsertBatch(ctx,
		[]string{"fade:0", "plating:0"},
		[][]float32{{1, 0}, {0.99, 0.01}}))

	hits, err := vectors.Search(ctx, []float32{1, 0}, 10, &domain.Filter{Tag: "lfp"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "plating:0", hits[0].ChunkID)
}

func TestVectorUpsertReplaces(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	vectors := store.VectorStore()

	require.NoError(t, vectors.Upsert(ctx, "fade:0", []float32{1, 0}))
	require.NoError(t, vectors.Upsert(ctx, "fade:0", []float32{0, 1}))

	n, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := vectors.Search(ctx, []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
}

func TestVectorDeleteByDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	vectors := store.VectorStore()

	require.NoError(t, vectors.UpsertBatch(ctx,
		[]string{"fade:0", "fade:1", "plating:0"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}}))

	require.NoError(t, vectors.DeleteByDocument(ctx, "fade"))

	n, err := vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorBatchLengthMismatch(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.VectorStore().UpsertBatch(context.Background(),
		[]string{"fade:0"}, [][]float32{{1, 0}, {0, 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ==================== Persistence Tests ====================

func TestDataSurvivesReopen(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "quaero-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)
	ctx := context.Background()

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	saveTestDocument(t, store, "fade", domain.Metadata{Title: "Persisted"})
	require.NoError(t, store.VectorStore().Upsert(ctx, "fade:0", []float32{1, 2, 3}))
	require.NoError(t, store.Close())

	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	doc, err := store.DocumentStore().GetDocument(ctx, "fade")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", doc.Metadata.Title)

	n, err := store.VectorStore().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
