package domain

// SpecialistSpec describes one specialist role in an asset-class catalog.
// Prompt templates use %s substitution for the rendered bundle summary.
type SpecialistSpec struct {
	Name           string
	Team           string
	SystemPrompt   string
	PromptTemplate string
}

// EvaluatorSpec describes one red-team evaluator role.
type EvaluatorSpec struct {
	Name           string
	ChallengeType  string
	SystemPrompt   string
	PromptTemplate string
}

// RiskProfile is a sizing/timing policy. Profile catalogs differ by asset
// class (conservative/moderate/aggressive vs. hodler/trader/degen).
type RiskProfile struct {
	Name          string
	AllocationPct float64
	StopLossPct   float64
	TimeHorizon   string
	MinConfidence float64 // recommendations below this are not emitted
}

// TriageThresholds controls the pre-filter and history lookback.
type TriageThresholds struct {
	MinSignificanceScore float64
	LookbackHours        int
}
