package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is an in-memory implementation of driven.StateStore.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]domain.PipelineState
}

// NewStateStore creates a new in-memory pipeline state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]domain.PipelineState),
	}
}

// GetState retrieves the pipeline state for a document.
func (s *StateStore) GetState(_ context.Context, documentID string) (*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &state, nil
}

// SaveState stores or updates the pipeline state for a document.
func (s *StateStore) SaveState(_ context.Context, state *domain.PipelineState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.DocumentID] = *state
	return nil
}

// ResetStage clears the completion flag for one stage and every later
// stage, across all documents.
func (s *StateStore) ResetStage(_ context.Context, stage domain.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear := false
	for _, st := range domain.Stages() {
		if st == stage {
			clear = true
		}
		if !clear {
			continue
		}
		for id, state := range s.states {
			switch st {
			case domain.StageParse:
				state.Parsed = false
			case domain.StageChunk:
				state.Chunked = false
			case domain.StageMetadata:
				state.MetadataDone = false
			case domain.StageEmbed:
				state.Embedded = false
			}
			s.states[id] = state
		}
	}
	return nil
}

// ResetAll clears all pipeline state.
func (s *StateStore) ResetAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]domain.PipelineState)
	return nil
}

// ListStates returns the pipeline state of every known document.
func (s *StateStore) ListStates(_ context.Context) ([]domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PipelineState, 0, len(s.states))
	for _, state := range s.states {
		out = append(out, state)
	}
	return out, nil
}
