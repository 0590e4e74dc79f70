package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/quaero-cli/internal/core/domain"
	"github.com/custodia-labs/quaero-cli/internal/core/ports/driven"
)

// Ensure stateStore implements the interface.
var _ driven.StateStore = (*stateStore)(nil)

// stateStore is the SQLite-backed StateStore.
type stateStore struct {
	store *Store
}

// GetState retrieves the pipeline state for a document.
func (s *stateStore) GetState(ctx context.Context, documentID string) (*domain.PipelineState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT document_id, parsed, chunked, metadata_done, embedded, updated_at
		FROM pipeline_state WHERE document_id = ?
	`, documentID)

	var state domain.PipelineState
	err := row.Scan(&state.DocumentID, &state.Parsed, &state.Chunked,
		&state.MetadataDone, &state.Embedded, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pipeline state: %w", err)
	}
	return &state, nil
}

// SaveState stores or updates the pipeline state for a document.
func (s *stateStore) SaveState(ctx context.Context, state *domain.PipelineState) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO pipeline_state (document_id, parsed, chunked, metadata_done, embedded, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			parsed = excluded.parsed,
			chunked = excluded.chunked,
			metadata_done = excluded.metadata_done,
			embedded = excluded.embedded,
			updated_at = excluded.updated_at
	`, state.DocumentID, state.Parsed, state.Chunked, state.MetadataDone,
		state.Embedded, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving pipeline state: %w", err)
	}
	return nil
}

// ResetStage clears the completion flag for one stage and every later
// stage, across all documents.
func (s *stateStore) ResetStage(ctx context.Context, stage domain.Stage) error {
	var set string
	switch stage {
	case domain.StageParse:
		set = "parsed = 0, chunked = 0, metadata_done = 0, embedded = 0"
	case domain.StageChunk:
		set = "chunked = 0, metadata_done = 0, embedded = 0"
	case domain.StageMetadata:
		set = "metadata_done = 0, embedded = 0"
	case domain.StageEmbed:
		set = "embedded = 0"
	default:
		return domain.ErrUnknownStage
	}

	_, err := s.store.db.ExecContext(ctx,
		"UPDATE pipeline_state SET "+set+", updated_at = CURRENT_TIMESTAMP")
	if err != nil {
		return fmt.Errorf("resetting stage %s: %w", stage, err)
	}
	return nil
}

// ResetAll clears all pipeline state.
func (s *stateStore) ResetAll(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM pipeline_state"); err != nil {
		return fmt.Errorf("resetting pipeline state: %w", err)
	}
	return nil
}

// ListStates returns the pipeline state of every known document.
func (s *stateStore) ListStates(ctx context.Context) ([]domain.PipelineState, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT document_id, parsed, chunked, metadata_done, embedded, updated_at
		FROM pipeline_state ORDER BY document_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying pipeline states: %w", err)
	}
	defer rows.Close()

	var states []domain.PipelineState //nolint:prealloc // size unknown from query
	for rows.Next() {
		var state domain.PipelineState
		if err := rows.Scan(&state.DocumentID, &state.Parsed, &state.Chunked,
			&state.MetadataDone, &state.Embedded, &state.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning pipeline state: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}
