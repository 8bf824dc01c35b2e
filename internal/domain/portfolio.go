package domain

// Fork is one of two parallel attribution tracks per analyst.
type Fork string

const (
	ForkUser Fork = "user" // user-directed picks
	ForkAI   Fork = "ai"   // autonomous picks
)

// Position direction constants
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// Position status constants
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Portfolio status constants
const (
	PortfolioStatusActive    = "active"
	PortfolioStatusSuspended = "suspended"
)

// Analyst is a tracked analysis agent. Both portfolio forks are created at
// analyst creation and never deleted.
type Analyst struct {
	AnalystID string
	Name      string
	Active    bool
}

// AnalystPortfolio is one (analyst, fork) paper portfolio.
type AnalystPortfolio struct {
	PortfolioID    string
	AnalystID      string
	Fork           Fork
	InitialBalance float64
	CurrentBalance float64
	RealizedPnl    float64
	UnrealizedPnl  float64
	WinCount       int
	LossCount      int
	Status         string
}

// AnalystPosition is one paper position. RealizedPnl is fixed once closed.
type AnalystPosition struct {
	PositionID  string
	PortfolioID string
	Symbol      string
	Direction   string // long | short
	Quantity    float64
	EntryPrice  float64
	ExitPrice   *float64
	RealizedPnl float64
	Status      string // open | closed
	OpenedAt    int64  // ms
	ClosedAt    *int64 // ms, nil while open
}

// DissentRecord is created only when an analyst's direction differs from the
// ensemble majority for a prediction.
type DissentRecord struct {
	AnalystID         string
	Fork              Fork
	Date              string // YYYY-MM-DD
	Instrument        string
	AnalystDirection  string
	EnsembleDirection string
	ActualDirection   string // resolved outcome, "" until known
}

// Resolved reports whether the dissent outcome is known.
func (d *DissentRecord) Resolved() bool {
	return d.ActualDirection != ""
}

// AnalystPerformanceMetrics is the per (analyst, fork, date) attribution row.
// Recomputation overwrites (upsert semantics).
type AnalystPerformanceMetrics struct {
	AnalystID       string
	Fork            Fork
	Date            string // YYYY-MM-DD
	SoloPnl         float64
	ContributionPnl float64
	DissentAccuracy *float64 // nil when no dissents that day
	DissentCount    int
	RankInPortfolio int
	TotalAnalysts   int
}

// LeaderboardEntry joins metrics with analyst identity for display.
type LeaderboardEntry struct {
	AnalystID   string
	AnalystName string
	Fork        Fork
	Date        string
	SoloPnl     float64
	Rank        int
}
