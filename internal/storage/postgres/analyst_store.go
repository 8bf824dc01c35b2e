package postgres

import (
	"context"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// AnalystStore implements storage.AnalystStore using PostgreSQL.
type AnalystStore struct {
	pool *Pool
}

// NewAnalystStore creates a new AnalystStore.
func NewAnalystStore(pool *Pool) *AnalystStore {
	return &AnalystStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AnalystStore = (*AnalystStore)(nil)

// Insert adds a new analyst. Returns ErrDuplicateKey if analyst_id exists.
func (s *AnalystStore) Insert(ctx context.Context, a *domain.Analyst) error {
	if a == nil || a.AnalystID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO analysts (analyst_id, name, active) VALUES ($1, $2, $3)`

	_, err := s.pool.Exec(ctx, query, a.AnalystID, a.Name, a.Active)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert analyst: %w", err)
	}
	return nil
}

// GetByID retrieves an analyst. Returns ErrNotFound if not exists.
func (s *AnalystStore) GetByID(ctx context.Context, analystID string) (*domain.Analyst, error) {
	query := `SELECT analyst_id, name, active FROM analysts WHERE analyst_id = $1`

	var a domain.Analyst
	err := s.pool.QueryRow(ctx, query, analystID).Scan(&a.AnalystID, &a.Name, &a.Active)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get analyst by id: %w", err)
	}
	return &a, nil
}

// GetActive retrieves all active analysts, ordered by analyst_id ASC.
func (s *AnalystStore) GetActive(ctx context.Context) ([]*domain.Analyst, error) {
	query := `SELECT analyst_id, name, active FROM analysts WHERE active ORDER BY analyst_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get active analysts: %w", err)
	}
	defer rows.Close()

	var analysts []*domain.Analyst
	for rows.Next() {
		var a domain.Analyst
		if err := rows.Scan(&a.AnalystID, &a.Name, &a.Active); err != nil {
			return nil, fmt.Errorf("scan analyst row: %w", err)
		}
		analysts = append(analysts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyst rows: %w", err)
	}
	return analysts, nil
}
