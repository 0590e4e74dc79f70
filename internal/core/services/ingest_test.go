package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quaero-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quaero-cli/internal/postprocessors"
	"github.com/custodia-labs/quaero-cli/internal/postprocessors/chunker"
)

// ingestFixture wires an IngestService over memory stores and mocks.
type ingestFixture struct {
	svc         *IngestService
	source      *mockSource
	docStore    *memory.DocumentStore
	stateStore  *memory.StateStore
	vectorStore *mockVectorStore
	sparseIndex *mockSparseIndex
	embedding   *mockEmbeddingService
}

func newIngestFixture(docs ...*domain.Document) *ingestFixture {
	f := &ingestFixture{
		source:      &mockSource{docs: map[string]*domain.Document{}, fetchErr: map[string]error{}},
		docStore:    memory.NewDocumentStore(),
		stateStore:  memory.NewStateStore(),
		vectorStore: &mockVectorStore{},
		sparseIndex: &mockSparseIndex{},
		embedding:   &mockEmbeddingService{},
	}
	for _, d := range docs {
		f.source.docs[d.ID] = d
	}
	pipeline := postprocessors.NewPipeline(chunker.New(chunker.WithChunkSize(10), chunker.WithOverlap(2)))
	f.svc = NewIngestService(
		f.source, f.docStore, f.stateStore, pipeline,
		f.embedding, f.vectorStore, f.sparseIndex, nil, nil,
	)
	f.svc.SetRetryPolicy(fastRetry())
	return f
}

func paperDoc(id string, tokens int) *domain.Document {
	words := make([]string, tokens)
	for i := range words {
		words[i] = "token"
	}
	return &domain.Document{ID: id, Text: strings.Join(words, " ")}
}

func TestIngestFullRun(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25), paperDoc("b", 5))

	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Skipped)
	assert.NotEmpty(t, report.RunID)

	// Every document reached the terminal state.
	states, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	for _, st := range states {
		assert.True(t, st.Embedded, "document %s not embedded", st.DocumentID)
	}

	// Vectors and keyword entries landed in the indexes.
	nVec, _ := f.vectorStore.Count(context.Background())
	nSparse, _ := f.sparseIndex.Count(context.Background())
	assert.Equal(t, nVec, nSparse)
	assert.Greater(t, nVec, 0)
}

func TestIngestIdempotent(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)
	firstEmbedCalls := f.embedding.calls

	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped, "completed document must be skipped")
	assert.Zero(t, report.Succeeded)
	assert.Equal(t, firstEmbedCalls, f.embedding.calls, "no re-embedding on a second run")
}

func TestIngestResumesAfterFailure(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))
	f.embedding.embedErr = errors.New("embedding service down")

	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err, "per-document failures never abort the batch")
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.StageEmbed, report.Failures["a"])

	// State stopped at the last completed stage.
	state, err := f.stateStore.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, state.MetadataDone)
	assert.False(t, state.Embedded, "failed stage must not be marked complete")

	// Recovery: the next run retries only the embed stage.
	f.embedding.embedErr = nil
	chunkCallsBefore, _ := f.docStore.CountChunks(context.Background())

	report, err = f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	chunkCallsAfter, _ := f.docStore.CountChunks(context.Background())
	assert.Equal(t, chunkCallsBefore, chunkCallsAfter, "earlier stages must not re-run")

	state, err = f.stateStore.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, state.Embedded)
}

func TestIngestFailureIsolation(t *testing.T) {
	f := newIngestFixture(paperDoc("good", 25), paperDoc("bad", 25))
	f.source.fetchErr["bad"] = errors.New("unreadable")

	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, domain.StageParse, report.Failures["bad"])

	state, err := f.stateStore.GetState(context.Background(), "good")
	require.NoError(t, err)
	assert.True(t, state.Embedded, "healthy document must complete despite sibling failure")
}

func TestIngestSingleStage(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	// Run parse only.
	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{OnlyStage: domain.StageParse})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	state, err := f.stateStore.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, state.Parsed)
	assert.False(t, state.Chunked)

	// Chunk stage is now eligible; embed is not.
	report, err = f.svc.Ingest(context.Background(), driving.IngestOptions{OnlyStage: domain.StageEmbed})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped, "embed must wait for metadata")

	report, err = f.svc.Ingest(context.Background(), driving.IngestOptions{OnlyStage: domain.StageChunk})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestIngestUnknownStage(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{OnlyStage: "rerank"})

	assert.ErrorIs(t, err, domain.ErrUnknownStage)
}

func TestIngestForceRerunsEverything(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)

	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded, "force must re-process completed documents")
	assert.Zero(t, report.Skipped)
}

func TestIngestForceSingleStage(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)

	report, err := f.svc.Ingest(context.Background(),
		driving.IngestOptions{OnlyStage: domain.StageChunk, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	// Chunk and its successors were reset, then only chunk re-ran.
	state, err := f.stateStore.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, state.Parsed)
	assert.True(t, state.Chunked)
	assert.False(t, state.Embedded, "later stages stay reset until their own run")
}

func TestIngestDocumentForceSingleStage(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)

	err = f.svc.IngestDocument(context.Background(), "a",
		driving.IngestOptions{OnlyStage: domain.StageChunk, Force: true})
	require.NoError(t, err)

	// Parse survives the reset so chunk stays eligible and re-runs;
	// later stages wait for their own run.
	state, err := f.stateStore.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, state.Parsed)
	assert.True(t, state.Chunked)
	assert.False(t, state.MetadataDone)
	assert.False(t, state.Embedded)
}

func TestIngestDocumentForceRerunsEverything(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})
	require.NoError(t, err)
	embedCallsBefore := f.embedding.calls

	err = f.svc.IngestDocument(context.Background(), "a", driving.IngestOptions{Force: true})
	require.NoError(t, err)

	assert.Greater(t, f.embedding.calls, embedCallsBefore, "force must re-embed")
	state, err := f.stateStore.GetState(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, state.Embedded)
}

func TestIngestMissingConfigurationFatal(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))
	f.svc.vectorStore = nil

	_, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})

	assert.ErrorIs(t, err, domain.ErrVectorStoreUnavailable)
}

func TestIngestDocumentReturnsFailure(t *testing.T) {
	f := newIngestFixture(paperDoc("a", 25))
	f.source.fetchErr["a"] = errors.New("unreadable")

	err := f.svc.IngestDocument(context.Background(), "a", driving.IngestOptions{})

	require.Error(t, err, "single-document mode surfaces the stage error")
	assert.Contains(t, err.Error(), "parse")
}

func TestIngestEmptyDocumentProducesNoChunks(t *testing.T) {
	f := newIngestFixture(&domain.Document{ID: "empty", Text: "   "})

	report, err := f.svc.Ingest(context.Background(), driving.IngestOptions{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	n, _ := f.docStore.CountChunks(context.Background())
	assert.Zero(t, n)
}
