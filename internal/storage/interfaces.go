package storage

import (
	"context"

	"prediction-pipeline/internal/domain"
)

// ClaimStore provides access to the claim history timeseries.
type ClaimStore interface {
	// InsertBatch appends a run's claims for an agent. Append-only.
	InsertBatch(ctx context.Context, agentID, runID string, claims []*domain.Claim) error

	// GetByInstrumentSince retrieves an agent's historical claims for an
	// instrument with timestamp >= since, ordered by timestamp ASC.
	GetByInstrumentSince(ctx context.Context, agentID, instrument string, since int64) ([]*domain.Claim, error)
}

// DatapointStore provides access to collected datapoints.
type DatapointStore interface {
	// Insert adds a new datapoint. Returns ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, d *domain.Datapoint) error

	// GetByID retrieves a datapoint by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, datapointID string) (*domain.Datapoint, error)
}

// PipelineRunStore provides access to persisted run summaries.
type PipelineRunStore interface {
	// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.PipelineRunRecord) error

	// GetByID retrieves a run record. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.PipelineRunRecord, error)
}

// RecommendationStore provides access to emitted recommendations.
type RecommendationStore interface {
	// InsertBulk adds a run's recommendations atomically.
	InsertBulk(ctx context.Context, runID string, recs []*domain.Recommendation) error

	// GetByRunID retrieves all recommendations for a run, ordered by instrument ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.Recommendation, error)
}

// AlertStore provides access to source-health alerts.
type AlertStore interface {
	// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
	Insert(ctx context.Context, a *domain.Alert) error

	// GetActive retrieves the active alert for (source, alertType).
	// Returns ErrNotFound if none is active.
	GetActive(ctx context.Context, sourceID, alertType string) (*domain.Alert, error)

	// UpdateStatus transitions an alert's status. Returns ErrNotFound if the
	// alert does not exist.
	UpdateStatus(ctx context.Context, alertID string, status domain.AlertStatus, resolvedAt *int64) error
}

// AnalystStore provides access to analyst identities.
type AnalystStore interface {
	// Insert adds a new analyst. Returns ErrDuplicateKey if analyst_id exists.
	Insert(ctx context.Context, a *domain.Analyst) error

	// GetByID retrieves an analyst. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, analystID string) (*domain.Analyst, error)

	// GetActive retrieves all active analysts, ordered by analyst_id ASC.
	GetActive(ctx context.Context) ([]*domain.Analyst, error)
}

// PortfolioStore provides access to analyst portfolios.
type PortfolioStore interface {
	// Insert adds a new portfolio. Returns ErrDuplicateKey if (analyst, fork) exists.
	Insert(ctx context.Context, p *domain.AnalystPortfolio) error

	// GetByAnalystFork retrieves the portfolio for (analyst, fork).
	// Returns ErrNotFound if not exists.
	GetByAnalystFork(ctx context.Context, analystID string, fork domain.Fork) (*domain.AnalystPortfolio, error)

	// Update overwrites portfolio balances and counters.
	Update(ctx context.Context, p *domain.AnalystPortfolio) error
}

// PositionStore provides access to analyst positions.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.AnalystPosition) error

	// Update overwrites a position (used to close it).
	Update(ctx context.Context, p *domain.AnalystPosition) error

	// GetClosedByPortfolio retrieves closed positions for a portfolio with
	// ClosedAt within [from, to] (ms, inclusive). Zero bounds are unbounded.
	GetClosedByPortfolio(ctx context.Context, portfolioID string, from, to int64) ([]*domain.AnalystPosition, error)
}

// DissentStore provides access to dissent records.
type DissentStore interface {
	// Insert adds a dissent record. Returns ErrDuplicateKey if
	// (analyst, fork, date, instrument) exists.
	Insert(ctx context.Context, d *domain.DissentRecord) error

	// GetByAnalystDate retrieves an analyst's dissent records for one day.
	GetByAnalystDate(ctx context.Context, analystID string, fork domain.Fork, date string) ([]*domain.DissentRecord, error)
}

// PerformanceMetricsStore provides access to analyst attribution rows.
type PerformanceMetricsStore interface {
	// Upsert inserts or overwrites the row for (analyst, fork, date).
	Upsert(ctx context.Context, m *domain.AnalystPerformanceMetrics) error

	// GetByDate retrieves all rows for (fork, date), ordered by rank ASC.
	GetByDate(ctx context.Context, fork domain.Fork, date string) ([]*domain.AnalystPerformanceMetrics, error)

	// GetLatestPerAnalyst retrieves each analyst's most recent row for a
	// fork, ordered by stored rank ASC.
	GetLatestPerAnalyst(ctx context.Context, fork domain.Fork) ([]*domain.AnalystPerformanceMetrics, error)
}
