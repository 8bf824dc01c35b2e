package postgres

import (
	"context"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PipelineRunStore implements storage.PipelineRunStore using PostgreSQL.
type PipelineRunStore struct {
	pool *Pool
}

// NewPipelineRunStore creates a new PipelineRunStore.
func NewPipelineRunStore(pool *Pool) *PipelineRunStore {
	return &PipelineRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PipelineRunStore = (*PipelineRunStore)(nil)

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *PipelineRunStore) Insert(ctx context.Context, r *domain.PipelineRunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pipeline_runs (
			run_id, agent_id, agent_slug, status, datapoint_id,
			started_at, completed_at, recommendation_count, error_count, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID,
		r.AgentID,
		r.AgentSlug,
		string(r.Status),
		r.DatapointID,
		r.StartedAt,
		r.CompletedAt,
		r.RecommendationCount,
		r.ErrorCount,
		r.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// GetByID retrieves a run record. Returns ErrNotFound if not exists.
func (s *PipelineRunStore) GetByID(ctx context.Context, runID string) (*domain.PipelineRunRecord, error) {
	query := `
		SELECT run_id, agent_id, agent_slug, status, datapoint_id,
		       started_at, completed_at, recommendation_count, error_count, error
		FROM pipeline_runs
		WHERE run_id = $1
	`

	var r domain.PipelineRunRecord
	var status string

	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&r.RunID,
		&r.AgentID,
		&r.AgentSlug,
		&status,
		&r.DatapointID,
		&r.StartedAt,
		&r.CompletedAt,
		&r.RecommendationCount,
		&r.ErrorCount,
		&r.Error,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pipeline run by id: %w", err)
	}

	r.Status = domain.RunStatus(status)
	return &r, nil
}
