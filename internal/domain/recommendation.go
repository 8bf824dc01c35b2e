package domain

// PositionSizing carries the risk-profile-specific sizing and timing policy
// applied to a recommendation.
type PositionSizing struct {
	AllocationPct float64 // fraction of portfolio to commit
	StopLossPct   float64 // protective stop distance
	TimeHorizon   string  // e.g. "intraday", "swing", "position"
}

// Recommendation is one sized, risk-profiled trade recommendation.
// RecommendationID is unique per run.
type Recommendation struct {
	RecommendationID string
	Instrument       string
	Action           string  // buy | sell | hold
	Confidence       float64 // in [0,1]
	Rationale        string
	Evidence         []string // specialist identifiers backing the call
	Sizing           PositionSizing
}
