package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PerformanceMetricsStore implements storage.PerformanceMetricsStore using
// PostgreSQL. Daily recomputation overwrites via ON CONFLICT.
type PerformanceMetricsStore struct {
	pool *Pool
}

// NewPerformanceMetricsStore creates a new PerformanceMetricsStore.
func NewPerformanceMetricsStore(pool *Pool) *PerformanceMetricsStore {
	return &PerformanceMetricsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PerformanceMetricsStore = (*PerformanceMetricsStore)(nil)

// Upsert inserts or overwrites the row for (analyst, fork, date).
func (s *PerformanceMetricsStore) Upsert(ctx context.Context, m *domain.AnalystPerformanceMetrics) error {
	if m == nil || m.AnalystID == "" || m.Date == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO analyst_performance_metrics (
			analyst_id, fork, date, solo_pnl, contribution_pnl,
			dissent_accuracy, dissent_count, rank_in_portfolio, total_analysts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (analyst_id, fork, date) DO UPDATE SET
			solo_pnl = EXCLUDED.solo_pnl,
			contribution_pnl = EXCLUDED.contribution_pnl,
			dissent_accuracy = EXCLUDED.dissent_accuracy,
			dissent_count = EXCLUDED.dissent_count,
			rank_in_portfolio = EXCLUDED.rank_in_portfolio,
			total_analysts = EXCLUDED.total_analysts
	`

	_, err := s.pool.Exec(ctx, query,
		m.AnalystID,
		string(m.Fork),
		m.Date,
		m.SoloPnl,
		m.ContributionPnl,
		m.DissentAccuracy,
		m.DissentCount,
		m.RankInPortfolio,
		m.TotalAnalysts,
	)
	if err != nil {
		return fmt.Errorf("upsert performance metrics: %w", err)
	}
	return nil
}

// GetByDate retrieves all rows for (fork, date), ordered by rank ASC.
func (s *PerformanceMetricsStore) GetByDate(ctx context.Context, fork domain.Fork, date string) ([]*domain.AnalystPerformanceMetrics, error) {
	query := `
		SELECT analyst_id, fork, date, solo_pnl, contribution_pnl,
		       dissent_accuracy, dissent_count, rank_in_portfolio, total_analysts
		FROM analyst_performance_metrics
		WHERE fork = $1 AND date = $2
		ORDER BY rank_in_portfolio ASC
	`

	rows, err := s.pool.Query(ctx, query, string(fork), date)
	if err != nil {
		return nil, fmt.Errorf("get metrics by date: %w", err)
	}
	defer rows.Close()

	return scanMetrics(rows)
}

// GetLatestPerAnalyst retrieves each analyst's most recent row for a fork,
// ordered by stored rank ASC.
func (s *PerformanceMetricsStore) GetLatestPerAnalyst(ctx context.Context, fork domain.Fork) ([]*domain.AnalystPerformanceMetrics, error) {
	query := `
		SELECT DISTINCT ON (analyst_id)
		       analyst_id, fork, date, solo_pnl, contribution_pnl,
		       dissent_accuracy, dissent_count, rank_in_portfolio, total_analysts
		FROM analyst_performance_metrics
		WHERE fork = $1
		ORDER BY analyst_id, date DESC
	`

	rows, err := s.pool.Query(ctx, query, string(fork))
	if err != nil {
		return nil, fmt.Errorf("get latest metrics: %w", err)
	}
	defer rows.Close()

	metrics, err := scanMetrics(rows)
	if err != nil {
		return nil, err
	}

	// DISTINCT ON fixes the per-analyst row; re-sort by rank for display.
	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].RankInPortfolio != metrics[j].RankInPortfolio {
			return metrics[i].RankInPortfolio < metrics[j].RankInPortfolio
		}
		return metrics[i].AnalystID < metrics[j].AnalystID
	})
	return metrics, nil
}

func scanMetrics(rows pgx.Rows) ([]*domain.AnalystPerformanceMetrics, error) {
	var metrics []*domain.AnalystPerformanceMetrics

	for rows.Next() {
		var m domain.AnalystPerformanceMetrics
		var forkStr string
		err := rows.Scan(
			&m.AnalystID,
			&forkStr,
			&m.Date,
			&m.SoloPnl,
			&m.ContributionPnl,
			&m.DissentAccuracy,
			&m.DissentCount,
			&m.RankInPortfolio,
			&m.TotalAnalysts,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metrics row: %w", err)
		}
		m.Fork = domain.Fork(forkStr)
		metrics = append(metrics, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics rows: %w", err)
	}
	return metrics, nil
}
