package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// RecommendationStore implements storage.RecommendationStore using PostgreSQL.
type RecommendationStore struct {
	pool *Pool
}

// NewRecommendationStore creates a new RecommendationStore.
func NewRecommendationStore(pool *Pool) *RecommendationStore {
	return &RecommendationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RecommendationStore = (*RecommendationStore)(nil)

// InsertBulk adds a run's recommendations atomically. The transaction rolls
// back whole on any failure so a run's output is never half-stored.
func (s *RecommendationStore) InsertBulk(ctx context.Context, runID string, recs []*domain.Recommendation) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO recommendations (
			recommendation_id, run_id, instrument, action, confidence,
			rationale, evidence, allocation_pct, stop_loss_pct, time_horizon
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, r := range recs {
		if r == nil || r.RecommendationID == "" {
			return storage.ErrInvalidInput
		}
		// pgx encodes a nil slice as SQL NULL; the column is NOT NULL.
		evidence := r.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		_, err := tx.Exec(ctx, query,
			r.RecommendationID,
			runID,
			r.Instrument,
			r.Action,
			r.Confidence,
			r.Rationale,
			evidence,
			r.Sizing.AllocationPct,
			r.Sizing.StopLossPct,
			r.Sizing.TimeHorizon,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert recommendation %s: %w", r.RecommendationID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit recommendations: %w", err)
	}
	return nil
}

// GetByRunID retrieves all recommendations for a run, ordered by instrument ASC.
func (s *RecommendationStore) GetByRunID(ctx context.Context, runID string) ([]*domain.Recommendation, error) {
	query := `
		SELECT recommendation_id, instrument, action, confidence,
		       rationale, evidence, allocation_pct, stop_loss_pct, time_horizon
		FROM recommendations
		WHERE run_id = $1
		ORDER BY instrument ASC, recommendation_id ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get recommendations by run: %w", err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

func scanRecommendations(rows pgx.Rows) ([]*domain.Recommendation, error) {
	var recs []*domain.Recommendation

	for rows.Next() {
		var r domain.Recommendation
		err := rows.Scan(
			&r.RecommendationID,
			&r.Instrument,
			&r.Action,
			&r.Confidence,
			&r.Rationale,
			&r.Evidence,
			&r.Sizing.AllocationPct,
			&r.Sizing.StopLossPct,
			&r.Sizing.TimeHorizon,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recommendation row: %w", err)
		}
		recs = append(recs, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recommendation rows: %w", err)
	}
	return recs, nil
}
