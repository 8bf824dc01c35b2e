package postgres

import (
	"context"
	"fmt"
	"math"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.AnalystPosition) error {
	if p == nil || p.PositionID == "" || p.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO analyst_positions (
			position_id, portfolio_id, symbol, direction, quantity,
			entry_price, exit_price, realized_pnl, status, opened_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.PortfolioID,
		p.Symbol,
		p.Direction,
		p.Quantity,
		p.EntryPrice,
		p.ExitPrice,
		p.RealizedPnl,
		p.Status,
		p.OpenedAt,
		p.ClosedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update overwrites a position (used to close it).
func (s *PositionStore) Update(ctx context.Context, p *domain.AnalystPosition) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE analyst_positions
		SET exit_price = $2, realized_pnl = $3, status = $4, closed_at = $5
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.ExitPrice,
		p.RealizedPnl,
		p.Status,
		p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetClosedByPortfolio retrieves closed positions for a portfolio with
// ClosedAt within [from, to] (ms, inclusive). Zero bounds are unbounded.
func (s *PositionStore) GetClosedByPortfolio(ctx context.Context, portfolioID string, from, to int64) ([]*domain.AnalystPosition, error) {
	if to == 0 {
		to = math.MaxInt64
	}

	query := `
		SELECT position_id, portfolio_id, symbol, direction, quantity,
		       entry_price, exit_price, realized_pnl, status, opened_at, closed_at
		FROM analyst_positions
		WHERE portfolio_id = $1 AND status = 'closed'
		  AND closed_at >= $2 AND closed_at <= $3
		ORDER BY closed_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, portfolioID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get closed positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.AnalystPosition
	for rows.Next() {
		var p domain.AnalystPosition
		err := rows.Scan(
			&p.PositionID,
			&p.PortfolioID,
			&p.Symbol,
			&p.Direction,
			&p.Quantity,
			&p.EntryPrice,
			&p.ExitPrice,
			&p.RealizedPnl,
			&p.Status,
			&p.OpenedAt,
			&p.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}
