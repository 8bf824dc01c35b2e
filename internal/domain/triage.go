package domain

// Urgency buckets for triaged bundles.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// TriageVote records one decision-maker's contribution to a triage result.
// The rule-based baseline emits a single synthetic voter; the shape supports
// multiple weighted voters without change.
type TriageVote struct {
	Voter      string
	Proceed    bool
	Urgency    Urgency
	Weight     float64
	Confidence float64
	Rationale  string
}

// TriageResult is the triage decision for one instrument bundle.
type TriageResult struct {
	Instrument      string
	Proceed         bool
	Urgency         Urgency
	SpecialistTeams []string
	Rationale       string
	Votes           []TriageVote
}
