package packaging

import (
	"fmt"
	"log"
	"strings"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/idhash"
)

// Standing challenges at or above this confidence count toward the veto.
const vetoConfidenceThreshold = 0.7

// Packager applies evaluator vetoes, risk-profile sizing, and the emission
// floor to per-instrument consensus.
type Packager struct {
	profile domain.RiskProfile
	logger  *log.Logger
}

// NewPackager creates a packager bound to one risk profile.
func NewPackager(profile domain.RiskProfile, logger *log.Logger) *Packager {
	if logger == nil {
		logger = log.Default()
	}
	return &Packager{profile: profile, logger: logger}
}

// BuildRecommendation assembles the recommendation for one instrument, or
// nil when the evaluator veto or the profile's confidence floor suppresses
// it. One standing high-confidence challenge downgrades the action to hold;
// two or more drop the recommendation entirely.
func (p *Packager) BuildRecommendation(runID, instrument string, analyses []*domain.SpecialistAnalysis, challenges []*domain.EvaluatorChallenge) *domain.Recommendation {
	if len(analyses) == 0 {
		return nil
	}

	consensus := BuildConsensus(analyses)
	action := consensus.Action
	confidence := consensus.Confidence

	standing := standingChallenges(challenges)
	switch {
	case len(standing) >= 2:
		p.logger.Printf("[packaging] %s: dropped, %d standing challenges", instrument, len(standing))
		return nil
	case len(standing) == 1 && action != domain.ActionHold:
		p.logger.Printf("[packaging] %s: downgraded %s to hold (%s)", instrument, action, standing[0].Evaluator)
		action = domain.ActionHold
	}

	if confidence < p.profile.MinConfidence {
		p.logger.Printf("[packaging] %s: below confidence floor %.2f < %.2f", instrument, confidence, p.profile.MinConfidence)
		return nil
	}

	return &domain.Recommendation{
		RecommendationID: idhash.ComputeRecommendationID(runID, instrument, consensus.Action),
		Instrument:       instrument,
		Action:           action,
		Confidence:       confidence,
		Rationale:        buildRationale(consensus, standing),
		Evidence:         consensus.Supporters,
		Sizing:           p.sizing(action),
	}
}

// Package deduplicates by recommendation ID, keeping the first occurrence.
func (p *Packager) Package(recs []*domain.Recommendation) []*domain.Recommendation {
	seen := make(map[string]bool, len(recs))
	out := make([]*domain.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r == nil || seen[r.RecommendationID] {
			continue
		}
		seen[r.RecommendationID] = true
		out = append(out, r)
	}
	return out
}

// standingChallenges returns failed challenges confident enough to veto.
func standingChallenges(challenges []*domain.EvaluatorChallenge) []*domain.EvaluatorChallenge {
	var standing []*domain.EvaluatorChallenge
	for _, c := range challenges {
		if !c.Passed && c.Confidence >= vetoConfidenceThreshold {
			standing = append(standing, c)
		}
	}
	return standing
}

func buildRationale(c Consensus, standing []*domain.EvaluatorChallenge) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d specialist(s) back %s at %.2f confidence", len(c.Supporters), c.Action, c.Confidence)
	for _, ch := range standing {
		fmt.Fprintf(&sb, "; %s challenge from %s: %s", ch.ChallengeType, ch.Evaluator, ch.Challenge)
	}
	return sb.String()
}

// sizing applies the profile's policy. Hold carries no exposure, so its
// allocation and stop are zeroed while the horizon is preserved for review.
func (p *Packager) sizing(action string) domain.PositionSizing {
	if action == domain.ActionHold {
		return domain.PositionSizing{TimeHorizon: p.profile.TimeHorizon}
	}
	return domain.PositionSizing{
		AllocationPct: p.profile.AllocationPct,
		StopLossPct:   p.profile.StopLossPct,
		TimeHorizon:   p.profile.TimeHorizon,
	}
}
