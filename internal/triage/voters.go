package triage

import (
	"fmt"

	"prediction-pipeline/internal/domain"
)

// RuleVoter is the deterministic baseline voter. It proceeds for every
// bundle that passed the pre-filter and derives urgency from significance.
type RuleVoter struct {
	name   string
	weight float64
}

// NewRuleVoter creates the synthetic rule-based voter.
func NewRuleVoter() *RuleVoter {
	return &RuleVoter{name: "rule-baseline", weight: 1}
}

// Name returns the voter identifier.
func (v *RuleVoter) Name() string { return v.name }

// Weight returns the voter's aggregation weight.
func (v *RuleVoter) Weight() float64 { return v.weight }

// Vote derives the decision from the bundle's significance score.
func (v *RuleVoter) Vote(b *domain.EnrichedClaimBundle) domain.TriageVote {
	score := 0.0
	if b.Diff != nil {
		score = b.Diff.SignificanceScore
	}

	return domain.TriageVote{
		Voter:      v.name,
		Proceed:    b.ShouldProceed,
		Urgency:    UrgencyFromScore(score),
		Weight:     v.weight,
		Confidence: score,
		Rationale:  fmt.Sprintf("significance %.3f", score),
	}
}

// Verify interface compliance at compile time.
var _ Voter = (*RuleVoter)(nil)

// StaticVoter is a fixed-decision voter used to compose multi-voter
// aggregations in tests and experiments.
type StaticVoter struct {
	VoterName       string
	VoterWeight     float64
	Proceed         bool
	Urgency         domain.Urgency
	VoterConfidence float64
}

// Name returns the voter identifier.
func (v *StaticVoter) Name() string { return v.VoterName }

// Weight returns the voter's aggregation weight.
func (v *StaticVoter) Weight() float64 { return v.VoterWeight }

// Vote returns the fixed decision.
func (v *StaticVoter) Vote(_ *domain.EnrichedClaimBundle) domain.TriageVote {
	return domain.TriageVote{
		Voter:      v.VoterName,
		Proceed:    v.Proceed,
		Urgency:    v.Urgency,
		Weight:     v.VoterWeight,
		Confidence: v.VoterConfidence,
	}
}

// Verify interface compliance at compile time.
var _ Voter = (*StaticVoter)(nil)
