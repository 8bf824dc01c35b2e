// Package packaging turns specialist analyses and evaluator challenges into
// sized, risk-profiled recommendations.
package packaging

import (
	"sort"

	"prediction-pipeline/internal/domain"
)

// Consensus is the confidence-weighted aggregate of specialist positions for
// one instrument, computed before evaluators challenge it.
type Consensus struct {
	Action     string
	Confidence float64
	Supporters []string // specialists whose vote matches the winning action
}

// BuildConsensus aggregates analyses by confidence-weighted vote. A tie
// across actions resolves to hold. Confidence is the winning side's weight
// share scaled by its average confidence, so a split panel can never emit a
// high-conviction call.
func BuildConsensus(analyses []*domain.SpecialistAnalysis) Consensus {
	if len(analyses) == 0 {
		return Consensus{Action: domain.ActionHold}
	}

	weights := make(map[string]float64)
	counts := make(map[string]int)
	supporters := make(map[string][]string)
	var total float64

	for _, a := range analyses {
		action := voteAction(a)
		weights[action] += a.Confidence
		counts[action]++
		supporters[action] = append(supporters[action], a.Specialist)
		total += a.Confidence
	}

	actions := make([]string, 0, len(weights))
	for action := range weights {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	winner := domain.ActionHold
	var best float64
	tied := false
	for _, action := range actions {
		w := weights[action]
		switch {
		case w > best:
			winner, best, tied = action, w, false
		case w == best:
			tied = true
		}
	}
	if tied || total == 0 {
		return Consensus{Action: domain.ActionHold}
	}

	avgWinner := best / float64(counts[winner])
	share := best / total

	return Consensus{
		Action:     winner,
		Confidence: share * avgWinner,
		Supporters: supporters[winner],
	}
}

// voteAction maps an analysis to its vote: an explicit suggested action wins,
// otherwise the conclusion implies one.
func voteAction(a *domain.SpecialistAnalysis) string {
	if a.SuggestedAction != "" {
		return a.SuggestedAction
	}
	switch a.Conclusion {
	case domain.ConclusionBullish:
		return domain.ActionBuy
	case domain.ConclusionBearish:
		return domain.ActionSell
	default:
		return domain.ActionHold
	}
}
