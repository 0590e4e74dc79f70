package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quaero-cli/internal/logger"
	"github.com/custodia-labs/quaero-cli/internal/retry"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// DefaultWorkers bounds concurrent document processing during ingestion.
const DefaultWorkers = 4

// ChunkPipeline turns a document into chunks. Implemented by
// postprocessors.Pipeline.
type ChunkPipeline interface {
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}

// IngestService runs the staged ingestion pipeline. Stages per document
// run in strict order (parse, chunk, metadata, embed), each committing
// its output and advancing PipelineState before the next starts, so an
// interrupted run resumes at the last completed stage. Documents are
// independent and process in parallel.
type IngestService struct {
	source      driven.DocumentSource
	docStore    driven.DocumentStore
	stateStore  driven.StateStore
	pipeline    ChunkPipeline
	embedding   driven.EmbeddingService
	vectorStore driven.VectorStore
	sparseIndex driven.SparseIndex
	metadata    driven.MetadataProvider
	llm         driven.LLMService
	retryPolicy retry.Policy
}

// NewIngestService creates a new ingest service.
// The metadata and llm parameters are optional (can be nil); the
// metadata stage then relies on document heuristics alone.
func NewIngestService(
	source driven.DocumentSource,
	docStore driven.DocumentStore,
	stateStore driven.StateStore,
	pipeline ChunkPipeline,
	embedding driven.EmbeddingService,
	vectorStore driven.VectorStore,
	sparseIndex driven.SparseIndex,
	metadata driven.MetadataProvider,
	llm driven.LLMService,
) *IngestService {
	return &IngestService{
		source:      source,
		docStore:    docStore,
		stateStore:  stateStore,
		pipeline:    pipeline,
		embedding:   embedding,
		vectorStore: vectorStore,
		sparseIndex: sparseIndex,
		metadata:    metadata,
		llm:         llm,
		retryPolicy: retry.DefaultPolicy(),
	}
}

// SetRetryPolicy overrides the backoff schedule for outbound calls.
func (s *IngestService) SetRetryPolicy(p retry.Policy) {
	s.retryPolicy = p
}

// Ingest runs the pipeline for every document the source holds.
// Per-document failures are recorded in the report and never abort the
// batch.
func (s *IngestService) Ingest(ctx context.Context, opts driving.IngestOptions) (*domain.IngestReport, error) {
	if err := s.checkConfigured(opts); err != nil {
		return nil, err
	}

	report := &domain.IngestReport{
		RunID:    uuid.New().String(),
		Failures: make(map[string]domain.Stage),
		Started:  time.Now(),
	}
	logger.Section("Ingestion Run " + report.RunID)

	if opts.Force {
		if opts.OnlyStage != "" {
			logger.Info("Force: resetting stage %s and successors", opts.OnlyStage)
			if err := s.stateStore.ResetStage(ctx, opts.OnlyStage); err != nil {
				return nil, fmt.Errorf("reset stage %s: %w", opts.OnlyStage, err)
			}
		} else {
			logger.Info("Force: resetting all pipeline state")
			if err := s.stateStore.ResetAll(ctx); err != nil {
				return nil, fmt.Errorf("reset pipeline state: %w", err)
			}
		}
	}

	ids, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	logger.Info("Source holds %d documents", len(ids))

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			ran, failedAt, err := s.runDocument(ctx, id, opts.OnlyStage)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				logger.Warn("Document %s failed at stage %s: %v", id, failedAt, err)
				report.Failed++
				report.Failures[id] = failedAt
			case !ran:
				report.Skipped++
			default:
				report.Succeeded++
			}
		}(id)
	}
	wg.Wait()

	report.Finished = time.Now()
	logger.Info("Run complete: %d succeeded, %d failed, %d skipped",
		report.Succeeded, report.Failed, report.Skipped)
	return report, nil
}

// IngestDocument runs the pipeline for a single document. Unlike batch
// ingestion, a stage failure is returned to the caller.
func (s *IngestService) IngestDocument(ctx context.Context, documentID string, opts driving.IngestOptions) error {
	if err := s.checkConfigured(opts); err != nil {
		return err
	}
	if opts.Force {
		state, err := s.stateStore.GetState(ctx, documentID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("get state: %w", err)
			}
			state = &domain.PipelineState{DocumentID: documentID}
		}
		// With a named stage, only that stage and its successors re-run;
		// clearing predecessors would make the stage ineligible.
		resetFrom := opts.OnlyStage
		if resetFrom == "" {
			resetFrom = domain.StageParse
		}
		state.Reset(resetFrom, time.Now())
		if err := s.stateStore.SaveState(ctx, state); err != nil {
			return fmt.Errorf("reset document state: %w", err)
		}
	}
	ran, failedAt, err := s.runDocument(ctx, documentID, opts.OnlyStage)
	if err != nil {
		return fmt.Errorf("document %s, stage %s: %w", documentID, failedAt, err)
	}
	if !ran {
		logger.Info("Document %s: nothing to do", documentID)
	}
	return nil
}

// Status reports the pipeline state of every known document, ordered by
// document ID.
func (s *IngestService) Status(ctx context.Context) ([]domain.PipelineState, error) {
	states, err := s.stateStore.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pipeline states: %w", err)
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].DocumentID < states[j].DocumentID
	})
	return states, nil
}

// checkConfigured validates required dependencies up front. A missing
// store is a configuration error and aborts before any work starts.
func (s *IngestService) checkConfigured(opts driving.IngestOptions) error {
	if opts.OnlyStage != "" && !domain.ValidStage(opts.OnlyStage) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownStage, opts.OnlyStage)
	}
	if s.vectorStore == nil {
		return fmt.Errorf("ingest: %w", domain.ErrVectorStoreUnavailable)
	}
	if s.sparseIndex == nil {
		return fmt.Errorf("ingest: %w", domain.ErrSparseIndexUnavailable)
	}
	if s.embedding == nil {
		return fmt.Errorf("ingest: %w", domain.ErrEmbeddingUnavailable)
	}
	return nil
}

// runDocument advances one document through its eligible stages.
// It reports whether any stage ran, and on error, which stage failed.
// State is only advanced after a stage fully commits, so failures leave
// the document at its last completed stage.
func (s *IngestService) runDocument(
	ctx context.Context, id string, only domain.Stage,
) (ran bool, failedAt domain.Stage, err error) {
	state, err := s.stateStore.GetState(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return false, "", fmt.Errorf("get state: %w", err)
		}
		state = &domain.PipelineState{DocumentID: id}
	}

	for _, stage := range domain.Stages() {
		if only != "" && stage != only {
			continue
		}
		if !state.Eligible(stage) {
			continue
		}

		logger.Debug("Document %s: running stage %s", id, stage)
		if err := s.runStage(ctx, id, stage); err != nil {
			return ran, stage, err
		}

		state.MarkCompleted(stage, time.Now())
		if err := s.stateStore.SaveState(ctx, state); err != nil {
			return ran, stage, fmt.Errorf("save state: %w", err)
		}
		ran = true
	}
	return ran, "", nil
}

func (s *IngestService) runStage(ctx context.Context, id string, stage domain.Stage) error {
	switch stage {
	case domain.StageParse:
		return s.parseStage(ctx, id)
	case domain.StageChunk:
		return s.chunkStage(ctx, id)
	case domain.StageMetadata:
		return s.metadataStage(ctx, id)
	case domain.StageEmbed:
		return s.embedStage(ctx, id)
	}
	return fmt.Errorf("%w: %q", domain.ErrUnknownStage, stage)
}

// parseStage fetches the document from the source and persists its
// normalised text.
func (s *IngestService) parseStage(ctx context.Context, id string) error {
	doc, err := s.source.Fetch(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// chunkStage splits the stored text into chunks and persists them.
func (s *IngestService) chunkStage(ctx context.Context, id string) error {
	doc, err := s.docStore.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	logger.Debug("Document %s: %d chunks", id, len(chunks))
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}
	return nil
}

// embedStage embeds all chunks and loads them into the vector store and
// sparse index.
func (s *IngestService) embedStage(ctx context.Context, id string) error {
	chunks, err := s.docStore.GetChunks(ctx, id)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	if len(chunks) == 0 {
		logger.Debug("Document %s: no chunks to embed", id)
		return nil
	}

	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	vectors, err := retry.DoValue(ctx, s.retryPolicy, "embed chunks", func() ([][]float32, error) {
		return s.embedding.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := s.vectorStore.UpsertBatch(ctx, ids, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	if err := s.sparseIndex.IndexBatch(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}
