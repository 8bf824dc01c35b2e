// Package attribution computes per-analyst P&L attribution, dissent
// tracking, and daily rankings across the two portfolio forks.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// Engine drives the daily attribution cycle.
type Engine struct {
	analysts   storage.AnalystStore
	portfolios storage.PortfolioStore
	positions  storage.PositionStore
	dissents   storage.DissentStore
	metrics    storage.PerformanceMetricsStore
	logger     *log.Logger
}

// Options for creating an Engine.
type Options struct {
	Analysts   storage.AnalystStore
	Portfolios storage.PortfolioStore
	Positions  storage.PositionStore
	Dissents   storage.DissentStore
	Metrics    storage.PerformanceMetricsStore
	Logger     *log.Logger
}

// NewEngine creates an attribution engine.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		analysts:   opts.Analysts,
		portfolios: opts.Portfolios,
		positions:  opts.Positions,
		dissents:   opts.Dissents,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// CalculateSoloPnl sums the realized P&L of the positions the analyst's own
// fork portfolio closed inside [from, to] (ms, inclusive).
func (e *Engine) CalculateSoloPnl(ctx context.Context, analystID string, fork domain.Fork, from, to int64) (float64, error) {
	portfolio, err := e.portfolios.GetByAnalystFork(ctx, analystID, fork)
	if err != nil {
		return 0, fmt.Errorf("portfolio for %s/%s: %w", analystID, fork, err)
	}

	closed, err := e.positions.GetClosedByPortfolio(ctx, portfolio.PortfolioID, from, to)
	if err != nil {
		return 0, fmt.Errorf("closed positions for %s: %w", portfolio.PortfolioID, err)
	}

	var pnl float64
	for _, p := range closed {
		pnl += p.RealizedPnl
	}
	return pnl, nil
}

// EnsembleOutcome is one ensemble decision an analyst participated in,
// used for contribution attribution.
type EnsembleOutcome struct {
	Instrument string
	Pnl        float64 // realized P&L of the ensemble position
	Weight     float64 // analyst's voting weight in this decision
	PanelSize  int     // number of analysts on the panel
	AgreedWith bool    // analyst's direction matched the ensemble's
}

// CalculateContributionPnl attributes ensemble P&L to one analyst:
// (weight / panelSize) * pnl, sign-flipped when the analyst disagreed with
// the ensemble call. A dissenter is credited when the ensemble loses and
// debited when it wins. An empty panel contributes zero.
func CalculateContributionPnl(outcomes []EnsembleOutcome) float64 {
	var total float64
	for _, o := range outcomes {
		if o.PanelSize == 0 {
			continue
		}
		share := (o.Weight / float64(o.PanelSize)) * o.Pnl
		if !o.AgreedWith {
			share = -share
		}
		total += share
	}
	return total
}

// TrackDissent records that an analyst's direction diverged from the
// ensemble for (fork, date, instrument). Agreement records nothing.
// Re-recording the same dissent is a no-op.
func (e *Engine) TrackDissent(ctx context.Context, d *domain.DissentRecord) error {
	if d.AnalystDirection == d.EnsembleDirection {
		return nil
	}
	err := e.dissents.Insert(ctx, d)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert dissent for %s/%s: %w", d.AnalystID, d.Instrument, err)
	}
	return nil
}

// CalculateDissentAccuracy computes the share of an analyst's resolved
// dissents that turned out correct for one day. Returns nil when the
// analyst had no resolved dissents: no dissent is not the same as wrong
// dissent. The second return is the total dissent count for the day.
func (e *Engine) CalculateDissentAccuracy(ctx context.Context, analystID string, fork domain.Fork, date string) (*float64, int, error) {
	records, err := e.dissents.GetByAnalystDate(ctx, analystID, fork, date)
	if err != nil {
		return nil, 0, fmt.Errorf("dissents for %s/%s on %s: %w", analystID, fork, date, err)
	}

	var resolved, correct int
	for _, r := range records {
		if !r.Resolved() {
			continue
		}
		resolved++
		if r.ActualDirection == r.AnalystDirection {
			correct++
		}
	}

	if resolved == 0 {
		return nil, len(records), nil
	}
	accuracy := float64(correct) / float64(resolved)
	return &accuracy, len(records), nil
}

// CalculateAndSaveDailyMetrics computes and upserts one attribution row per
// active analyst for (fork, date). Ranking is by solo P&L descending with
// analyst ID ascending as the tiebreak. Contribution P&L is supplied by the
// caller per analyst, since ensemble outcomes live with the run results.
func (e *Engine) CalculateAndSaveDailyMetrics(ctx context.Context, fork domain.Fork, date string, contributions map[string]float64) ([]*domain.AnalystPerformanceMetrics, error) {
	analysts, err := e.analysts.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("active analysts: %w", err)
	}

	from, to, err := dayBoundsMs(date)
	if err != nil {
		return nil, err
	}

	rows := make([]*domain.AnalystPerformanceMetrics, 0, len(analysts))
	for _, a := range analysts {
		solo, err := e.CalculateSoloPnl(ctx, a.AnalystID, fork, from, to)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Analyst without a fork portfolio scores zero rather than
				// dropping out of the ranking.
				solo = 0
			} else {
				return nil, err
			}
		}

		accuracy, dissentCount, err := e.CalculateDissentAccuracy(ctx, a.AnalystID, fork, date)
		if err != nil {
			return nil, err
		}

		rows = append(rows, &domain.AnalystPerformanceMetrics{
			AnalystID:       a.AnalystID,
			Fork:            fork,
			Date:            date,
			SoloPnl:         solo,
			ContributionPnl: contributions[a.AnalystID],
			DissentAccuracy: accuracy,
			DissentCount:    dissentCount,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SoloPnl != rows[j].SoloPnl {
			return rows[i].SoloPnl > rows[j].SoloPnl
		}
		return rows[i].AnalystID < rows[j].AnalystID
	})
	for i, r := range rows {
		r.RankInPortfolio = i + 1
		r.TotalAnalysts = len(rows)
	}

	for _, r := range rows {
		if err := e.metrics.Upsert(ctx, r); err != nil {
			return nil, fmt.Errorf("upsert metrics for %s: %w", r.AnalystID, err)
		}
	}

	e.logger.Printf("[attribution] %s/%s: ranked %d analysts", fork, date, len(rows))
	return rows, nil
}

// GetLeaderboard returns each analyst's most recent row for a fork, joined
// with identity, ordered by stored rank.
func (e *Engine) GetLeaderboard(ctx context.Context, fork domain.Fork) ([]*domain.LeaderboardEntry, error) {
	rows, err := e.metrics.GetLatestPerAnalyst(ctx, fork)
	if err != nil {
		return nil, fmt.Errorf("latest metrics for %s: %w", fork, err)
	}

	entries := make([]*domain.LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		name := r.AnalystID
		if a, err := e.analysts.GetByID(ctx, r.AnalystID); err == nil {
			name = a.Name
		}
		entries = append(entries, &domain.LeaderboardEntry{
			AnalystID:   r.AnalystID,
			AnalystName: name,
			Fork:        r.Fork,
			Date:        r.Date,
			SoloPnl:     r.SoloPnl,
			Rank:        r.RankInPortfolio,
		})
	}
	return entries, nil
}

// dayBoundsMs converts a YYYY-MM-DD date to its inclusive UTC bounds in ms.
func dayBoundsMs(date string) (int64, int64, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	from := day.UnixMilli()
	to := day.Add(24*time.Hour).UnixMilli() - 1
	return from, to, nil
}
