package domain

// Specialist conclusion constants
const (
	ConclusionBullish   = "bullish"
	ConclusionBearish   = "bearish"
	ConclusionNeutral   = "neutral"
	ConclusionUncertain = "uncertain"
)

// Suggested action constants. Empty string means no action suggested.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// SpecialistAnalysis is one domain expert's structured take on an instrument.
type SpecialistAnalysis struct {
	Specialist      string
	Instrument      string
	Conclusion      string  // bullish | bearish | neutral | uncertain
	Confidence      float64 // in [0,1]
	Analysis        string
	SuggestedAction string // buy | sell | hold | "" (none)
	RiskFactors     []string
}

// Challenge type constants
const (
	ChallengeContrarian        = "contrarian"
	ChallengeRiskAssessment    = "risk-assessment"
	ChallengeHistoricalPattern = "historical-pattern"
	ChallengeCorrelation       = "correlation"
	ChallengeTiming            = "timing"
)

// EvaluatorChallenge is a red-team challenge against the emerging consensus
// for one instrument. Passed=false means the challenge stands and may veto
// or downgrade the recommendation it targets.
type EvaluatorChallenge struct {
	Evaluator        string
	Instrument       string
	RecommendationID string
	ChallengeType    string
	Passed           bool
	Challenge        string
	Confidence       float64 // in [0,1]
}
