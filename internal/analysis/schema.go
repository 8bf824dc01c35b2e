package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"prediction-pipeline/internal/domain"
)

// Structured model output is validated at the boundary: repairable issues
// (case, confidence out of bounds) are fixed, anything else is rejected.

// rawSpecialistResult is the loosely-typed wire shape of a specialist reply.
type rawSpecialistResult struct {
	Conclusion      string   `json:"conclusion"`
	Confidence      float64  `json:"confidence"`
	Analysis        string   `json:"analysis"`
	SuggestedAction string   `json:"suggested_action"`
	RiskFactors     []string `json:"risk_factors"`
}

// rawEvaluatorResult is the loosely-typed wire shape of an evaluator reply.
type rawEvaluatorResult struct {
	Passed     bool    `json:"passed"`
	Challenge  string  `json:"challenge"`
	Confidence float64 `json:"confidence"`
}

// ParseSpecialistAnalysis validates and repairs a specialist reply.
func ParseSpecialistAnalysis(raw, specialist, instrument string) (*domain.SpecialistAnalysis, error) {
	var r rawSpecialistResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &r); err != nil {
		return nil, fmt.Errorf("unmarshal specialist result: %w", err)
	}

	conclusion := strings.ToLower(strings.TrimSpace(r.Conclusion))
	switch conclusion {
	case domain.ConclusionBullish, domain.ConclusionBearish, domain.ConclusionNeutral, domain.ConclusionUncertain:
	default:
		return nil, fmt.Errorf("invalid conclusion %q", r.Conclusion)
	}

	action := strings.ToLower(strings.TrimSpace(r.SuggestedAction))
	switch action {
	case "", "none", "null":
		action = ""
	case domain.ActionBuy, domain.ActionSell, domain.ActionHold:
	default:
		return nil, fmt.Errorf("invalid suggested action %q", r.SuggestedAction)
	}

	return &domain.SpecialistAnalysis{
		Specialist:      specialist,
		Instrument:      instrument,
		Conclusion:      conclusion,
		Confidence:      clampConfidence(r.Confidence),
		Analysis:        r.Analysis,
		SuggestedAction: action,
		RiskFactors:     r.RiskFactors,
	}, nil
}

// ParseEvaluatorChallenge validates and repairs an evaluator reply.
func ParseEvaluatorChallenge(raw, evaluator, challengeType, instrument, recommendationID string) (*domain.EvaluatorChallenge, error) {
	var r rawEvaluatorResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &r); err != nil {
		return nil, fmt.Errorf("unmarshal evaluator result: %w", err)
	}

	if strings.TrimSpace(r.Challenge) == "" {
		return nil, fmt.Errorf("evaluator %s returned empty challenge text", evaluator)
	}

	return &domain.EvaluatorChallenge{
		Evaluator:        evaluator,
		Instrument:       instrument,
		RecommendationID: recommendationID,
		ChallengeType:    challengeType,
		Passed:           r.Passed,
		Challenge:        r.Challenge,
		Confidence:       clampConfidence(r.Confidence),
	}, nil
}

// extractJSON trims non-JSON wrapping (markdown fences, prose) around the
// first top-level object in the reply.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
