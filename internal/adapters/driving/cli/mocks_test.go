package cli

import (
	"context"
	"testing"
	"time"

	configfile "github.com/custodia-labs/quaero-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driving"
)

// fakeAskService returns canned passages and answers.
type fakeAskService struct {
	passages []domain.Passage
	answer   *domain.Answer
	err      error
	lastOpts domain.RetrievalOptions
}

func (f *fakeAskService) Ask(_ context.Context, _ string, opts domain.RetrievalOptions) (*domain.Answer, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeAskService) Retrieve(_ context.Context, _ string, opts domain.RetrievalOptions) ([]domain.Passage, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

// fakeIngestService returns a canned report and state list.
type fakeIngestService struct {
	report   *domain.IngestReport
	states   []domain.PipelineState
	err      error
	lastOpts driving.IngestOptions
	lastID   string
}

func (f *fakeIngestService) Ingest(_ context.Context, opts driving.IngestOptions) (*domain.IngestReport, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.report, nil
}

func (f *fakeIngestService) IngestDocument(_ context.Context, id string, opts driving.IngestOptions) error {
	f.lastID = id
	f.lastOpts = opts
	return f.err
}

func (f *fakeIngestService) Status(context.Context) ([]domain.PipelineState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.states, nil
}

// setupTestServices swaps the package-level services for fakes and
// returns them with a cleanup that restores the previous state.
func setupTestServices(t *testing.T) (*fakeAskService, *fakeIngestService) {
	t.Helper()

	resetFlags()
	t.Setenv("QUAERO_CONFIG_DIR", t.TempDir())
	cfg, err := configfile.NewConfigStore(t.TempDir())
	if err != nil {
		t.Fatalf("config store: %v", err)
	}

	ask := &fakeAskService{
		answer: &domain.Answer{
			Text: "SEI growth consumes lithium inventory [Passage 1].",
			Passages: []domain.Passage{
				{DocumentID: "fade", ChunkID: "fade:0", Title: "Capacity Fade", Text: "SEI growth", Score: 0.9},
			},
		},
		passages: []domain.Passage{
			{DocumentID: "fade", ChunkID: "fade:0", Title: "Capacity Fade", Text: "SEI growth", Score: 0.9},
		},
	}
	ingest := &fakeIngestService{
		report: &domain.IngestReport{
			RunID:     "test-run",
			Succeeded: 2,
			Started:   time.Now(),
			Finished:  time.Now().Add(time.Second),
			Failures:  map[string]domain.Stage{},
		},
		states: []domain.PipelineState{
			{DocumentID: "fade", Parsed: true, Chunked: true, MetadataDone: true, Embedded: true},
			{DocumentID: "plating", Parsed: true},
		},
	}

	prevAsk, prevIngest, prevCfg, prevReady := askSvc, ingestSvc, configStore, servicesReady
	askSvc, ingestSvc, configStore, servicesReady = ask, ingest, cfg, true

	t.Cleanup(func() {
		askSvc, ingestSvc, configStore, servicesReady = prevAsk, prevIngest, prevCfg, prevReady
		rootCmd.SetArgs(nil)
	})

	return ask, ingest
}

// resetFlags restores command flag variables to their registered
// defaults. Cobra keeps flag values across Execute calls.
func resetFlags() {
	verbose = false
	askTopK, askCandidates, askAlpha = 0, 0, -1
	askNoExpand, askNoRerank, askRetrieveOnly, askJSON = false, false, false, false
	askTag, askVenue, askYear, askPaperType = "", "", "", ""
	ingestStage, ingestForce, ingestWorkers, ingestWatch, ingestDir = "", false, 0, false, ""
	statusJSON = false
}
