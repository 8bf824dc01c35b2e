package postgres

import (
	"context"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// Insert adds a new portfolio. Returns ErrDuplicateKey if (analyst, fork) exists.
func (s *PortfolioStore) Insert(ctx context.Context, p *domain.AnalystPortfolio) error {
	if p == nil || p.PortfolioID == "" || p.AnalystID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO analyst_portfolios (
			portfolio_id, analyst_id, fork, initial_balance, current_balance,
			realized_pnl, unrealized_pnl, win_count, loss_count, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PortfolioID,
		p.AnalystID,
		string(p.Fork),
		p.InitialBalance,
		p.CurrentBalance,
		p.RealizedPnl,
		p.UnrealizedPnl,
		p.WinCount,
		p.LossCount,
		p.Status,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert portfolio: %w", err)
	}
	return nil
}

// GetByAnalystFork retrieves the portfolio for (analyst, fork).
func (s *PortfolioStore) GetByAnalystFork(ctx context.Context, analystID string, fork domain.Fork) (*domain.AnalystPortfolio, error) {
	query := `
		SELECT portfolio_id, analyst_id, fork, initial_balance, current_balance,
		       realized_pnl, unrealized_pnl, win_count, loss_count, status
		FROM analyst_portfolios
		WHERE analyst_id = $1 AND fork = $2
	`

	var p domain.AnalystPortfolio
	var forkStr string

	err := s.pool.QueryRow(ctx, query, analystID, string(fork)).Scan(
		&p.PortfolioID,
		&p.AnalystID,
		&forkStr,
		&p.InitialBalance,
		&p.CurrentBalance,
		&p.RealizedPnl,
		&p.UnrealizedPnl,
		&p.WinCount,
		&p.LossCount,
		&p.Status,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get portfolio: %w", err)
	}

	p.Fork = domain.Fork(forkStr)
	return &p, nil
}

// Update overwrites portfolio balances and counters.
func (s *PortfolioStore) Update(ctx context.Context, p *domain.AnalystPortfolio) error {
	if p == nil || p.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE analyst_portfolios
		SET current_balance = $2, realized_pnl = $3, unrealized_pnl = $4,
		    win_count = $5, loss_count = $6, status = $7
		WHERE portfolio_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		p.PortfolioID,
		p.CurrentBalance,
		p.RealizedPnl,
		p.UnrealizedPnl,
		p.WinCount,
		p.LossCount,
		p.Status,
	)
	if err != nil {
		return fmt.Errorf("update portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
