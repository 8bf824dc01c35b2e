// Package triage decides which instrument bundles receive deep analysis,
// at what urgency, and by which specialist teams.
package triage

import (
	"fmt"

	"prediction-pipeline/internal/domain"
)

// AggregationMode selects how multiple voters are combined.
type AggregationMode string

const (
	// AggregateMajority counts weighted proceed votes against the total weight.
	AggregateMajority AggregationMode = "majority"
	// AggregateConfidenceWeighted scales each vote's weight by its confidence.
	AggregateConfidenceWeighted AggregationMode = "confidence-weighted"
)

// Voter is one triage decision-maker. The rule-based baseline supplies a
// single synthetic voter; multi-agent triage plugs in more without changing
// the result shape.
type Voter interface {
	Name() string
	Weight() float64
	Vote(bundle *domain.EnrichedClaimBundle) domain.TriageVote
}

// Engine produces one TriageResult per bundle that passed the pre-filter.
type Engine struct {
	voters []Voter
	teams  []string // specialist teams in priority order, from the asset-class registry
	mode   AggregationMode
}

// Options for creating an Engine.
type Options struct {
	Voters []Voter
	Teams  []string
	Mode   AggregationMode
}

// NewEngine creates a triage engine. With no voters configured it installs
// the rule-based baseline voter.
func NewEngine(opts Options) *Engine {
	voters := opts.Voters
	if len(voters) == 0 {
		voters = []Voter{NewRuleVoter()}
	}

	mode := opts.Mode
	if mode == "" {
		mode = AggregateMajority
	}

	return &Engine{
		voters: voters,
		teams:  opts.Teams,
		mode:   mode,
	}
}

// UrgencyFromScore buckets a significance score into an urgency level.
func UrgencyFromScore(score float64) domain.Urgency {
	switch {
	case score >= 0.8:
		return domain.UrgencyCritical
	case score >= 0.6:
		return domain.UrgencyHigh
	case score >= 0.4:
		return domain.UrgencyMedium
	default:
		return domain.UrgencyLow
	}
}

// Triage evaluates the bundles that passed the pre-filter. Bundles with
// ShouldProceed=false are skipped entirely.
func (e *Engine) Triage(bundles []*domain.EnrichedClaimBundle) []*domain.TriageResult {
	var results []*domain.TriageResult
	for _, b := range bundles {
		if !b.ShouldProceed {
			continue
		}
		results = append(results, e.triageBundle(b))
	}
	return results
}

func (e *Engine) triageBundle(b *domain.EnrichedClaimBundle) *domain.TriageResult {
	votes := make([]domain.TriageVote, 0, len(e.voters))
	for _, v := range e.voters {
		votes = append(votes, v.Vote(b))
	}

	proceed, urgency := e.aggregate(votes)

	result := &domain.TriageResult{
		Instrument: b.Instrument,
		Proceed:    proceed,
		Urgency:    urgency,
		Votes:      votes,
	}

	if proceed {
		result.SpecialistTeams = e.teamsFor(urgency)
		result.Rationale = fmt.Sprintf("%d/%d voters proceed at %s urgency", proceedCount(votes), len(votes), urgency)
	} else {
		result.Rationale = fmt.Sprintf("%d/%d voters proceed; below majority", proceedCount(votes), len(votes))
	}

	return result
}

// aggregate combines votes per the configured mode. Urgency is the highest
// urgency among proceeding voters so a single critical voter escalates.
func (e *Engine) aggregate(votes []domain.TriageVote) (bool, domain.Urgency) {
	var totalWeight, proceedWeight float64
	urgency := domain.UrgencyLow

	for _, v := range votes {
		w := v.Weight
		if w <= 0 {
			w = 1
		}
		if e.mode == AggregateConfidenceWeighted {
			w *= v.Confidence
		}
		totalWeight += w
		if v.Proceed {
			proceedWeight += w
			if urgencyRank(v.Urgency) > urgencyRank(urgency) {
				urgency = v.Urgency
			}
		}
	}

	if totalWeight == 0 {
		return false, domain.UrgencyLow
	}
	return proceedWeight/totalWeight >= 0.5, urgency
}

// teamsFor selects specialist teams by urgency: higher urgency engages more
// of the registry's priority-ordered teams.
func (e *Engine) teamsFor(urgency domain.Urgency) []string {
	n := len(e.teams)
	if n == 0 {
		return nil
	}

	var count int
	switch urgency {
	case domain.UrgencyCritical, domain.UrgencyHigh:
		count = n
	case domain.UrgencyMedium:
		count = 2
	default:
		count = 1
	}
	if count > n {
		count = n
	}

	teams := make([]string, count)
	copy(teams, e.teams[:count])
	return teams
}

func urgencyRank(u domain.Urgency) int {
	switch u {
	case domain.UrgencyCritical:
		return 3
	case domain.UrgencyHigh:
		return 2
	case domain.UrgencyMedium:
		return 1
	default:
		return 0
	}
}

func proceedCount(votes []domain.TriageVote) int {
	n := 0
	for _, v := range votes {
		if v.Proceed {
			n++
		}
	}
	return n
}
