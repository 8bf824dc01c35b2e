package postgres

import (
	"context"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// DissentStore implements storage.DissentStore using PostgreSQL.
type DissentStore struct {
	pool *Pool
}

// NewDissentStore creates a new DissentStore.
func NewDissentStore(pool *Pool) *DissentStore {
	return &DissentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DissentStore = (*DissentStore)(nil)

// Insert adds a dissent record. Returns ErrDuplicateKey if
// (analyst, fork, date, instrument) exists.
func (s *DissentStore) Insert(ctx context.Context, d *domain.DissentRecord) error {
	if d == nil || d.AnalystID == "" || d.Date == "" || d.Instrument == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO dissent_records (
			analyst_id, fork, date, instrument,
			analyst_direction, ensemble_direction, actual_direction
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		d.AnalystID,
		string(d.Fork),
		d.Date,
		d.Instrument,
		d.AnalystDirection,
		d.EnsembleDirection,
		d.ActualDirection,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert dissent record: %w", err)
	}
	return nil
}

// GetByAnalystDate retrieves an analyst's dissent records for one day.
func (s *DissentStore) GetByAnalystDate(ctx context.Context, analystID string, fork domain.Fork, date string) ([]*domain.DissentRecord, error) {
	query := `
		SELECT analyst_id, fork, date, instrument,
		       analyst_direction, ensemble_direction, actual_direction
		FROM dissent_records
		WHERE analyst_id = $1 AND fork = $2 AND date = $3
		ORDER BY instrument ASC
	`

	rows, err := s.pool.Query(ctx, query, analystID, string(fork), date)
	if err != nil {
		return nil, fmt.Errorf("get dissent records: %w", err)
	}
	defer rows.Close()

	var records []*domain.DissentRecord
	for rows.Next() {
		var d domain.DissentRecord
		var forkStr string
		err := rows.Scan(
			&d.AnalystID,
			&forkStr,
			&d.Date,
			&d.Instrument,
			&d.AnalystDirection,
			&d.EnsembleDirection,
			&d.ActualDirection,
		)
		if err != nil {
			return nil, fmt.Errorf("scan dissent row: %w", err)
		}
		d.Fork = domain.Fork(forkStr)
		records = append(records, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dissent rows: %w", err)
	}
	return records, nil
}
