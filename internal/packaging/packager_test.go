package packaging

import (
	"testing"

	"prediction-pipeline/internal/domain"
)

func analysis(specialist, conclusion string, confidence float64) *domain.SpecialistAnalysis {
	return &domain.SpecialistAnalysis{
		Specialist: specialist,
		Instrument: "AAPL",
		Conclusion: conclusion,
		Confidence: confidence,
	}
}

func failedChallenge(evaluator string, confidence float64) *domain.EvaluatorChallenge {
	return &domain.EvaluatorChallenge{
		Evaluator:     evaluator,
		Instrument:    "AAPL",
		ChallengeType: domain.ChallengeContrarian,
		Passed:        false,
		Challenge:     "thesis does not survive scrutiny",
		Confidence:    confidence,
	}
}

func moderateProfile() domain.RiskProfile {
	return domain.RiskProfile{
		Name:          "moderate",
		AllocationPct: 0.05,
		StopLossPct:   0.08,
		TimeHorizon:   "swing",
		MinConfidence: 0.3,
	}
}

func TestBuildConsensus_WeightedMajority(t *testing.T) {
	c := BuildConsensus([]*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.9),
		analysis("b", domain.ConclusionBullish, 0.7),
		analysis("c", domain.ConclusionBearish, 0.6),
	})

	if c.Action != domain.ActionBuy {
		t.Errorf("Action = %s, want buy", c.Action)
	}
	// share 1.6/2.2, avg winner 0.8
	want := (1.6 / 2.2) * 0.8
	if diff := c.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %f, want %f", c.Confidence, want)
	}
	if len(c.Supporters) != 2 {
		t.Errorf("Supporters = %v, want a and b", c.Supporters)
	}
}

func TestBuildConsensus_TieResolvesToHold(t *testing.T) {
	c := BuildConsensus([]*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.5),
		analysis("b", domain.ConclusionBearish, 0.5),
	})
	if c.Action != domain.ActionHold {
		t.Errorf("Tied panel should hold, got %s", c.Action)
	}
	if c.Confidence != 0 {
		t.Errorf("Tied consensus carries no confidence, got %f", c.Confidence)
	}
}

func TestBuildConsensus_EmptyPanel(t *testing.T) {
	c := BuildConsensus(nil)
	if c.Action != domain.ActionHold || c.Confidence != 0 {
		t.Errorf("Empty panel should be a zero-confidence hold, got %+v", c)
	}
}

func TestBuildRecommendation_SizingFromProfile(t *testing.T) {
	p := NewPackager(moderateProfile(), nil)

	rec := p.BuildRecommendation("run-1", "AAPL", []*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.9),
		analysis("b", domain.ConclusionBullish, 0.8),
	}, nil)

	if rec == nil {
		t.Fatal("Expected a recommendation")
	}
	if rec.Action != domain.ActionBuy {
		t.Errorf("Action = %s, want buy", rec.Action)
	}
	if rec.Sizing.AllocationPct != 0.05 || rec.Sizing.StopLossPct != 0.08 || rec.Sizing.TimeHorizon != "swing" {
		t.Errorf("Sizing not taken from profile: %+v", rec.Sizing)
	}
	if rec.RecommendationID == "" {
		t.Error("RecommendationID must be set")
	}
	if len(rec.Evidence) != 2 {
		t.Errorf("Evidence should list supporting specialists, got %v", rec.Evidence)
	}
}

func TestBuildRecommendation_SingleVetoDowngradesToHold(t *testing.T) {
	p := NewPackager(moderateProfile(), nil)

	rec := p.BuildRecommendation("run-1", "AAPL", []*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.9),
		analysis("b", domain.ConclusionBullish, 0.8),
	}, []*domain.EvaluatorChallenge{failedChallenge("bear", 0.8)})

	if rec == nil {
		t.Fatal("One veto downgrades, does not drop")
	}
	if rec.Action != domain.ActionHold {
		t.Errorf("Action = %s, want hold after veto", rec.Action)
	}
	if rec.Sizing.AllocationPct != 0 {
		t.Error("Hold must carry no allocation")
	}
}

func TestBuildRecommendation_DoubleVetoDrops(t *testing.T) {
	p := NewPackager(moderateProfile(), nil)

	rec := p.BuildRecommendation("run-1", "AAPL", []*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.9),
	}, []*domain.EvaluatorChallenge{
		failedChallenge("bear", 0.8),
		failedChallenge("risk", 0.9),
	})

	if rec != nil {
		t.Errorf("Two standing challenges must drop the recommendation, got %+v", rec)
	}
}

func TestBuildRecommendation_LowConfidenceChallengeIgnored(t *testing.T) {
	p := NewPackager(moderateProfile(), nil)

	rec := p.BuildRecommendation("run-1", "AAPL", []*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.9),
		analysis("b", domain.ConclusionBullish, 0.8),
	}, []*domain.EvaluatorChallenge{failedChallenge("bear", 0.5)})

	if rec == nil || rec.Action != domain.ActionBuy {
		t.Error("Challenges below the veto threshold must not downgrade")
	}
}

func TestBuildRecommendation_ConfidenceFloor(t *testing.T) {
	profile := moderateProfile()
	profile.MinConfidence = 0.95
	p := NewPackager(profile, nil)

	rec := p.BuildRecommendation("run-1", "AAPL", []*domain.SpecialistAnalysis{
		analysis("a", domain.ConclusionBullish, 0.6),
	}, nil)

	if rec != nil {
		t.Errorf("Below-floor consensus must not emit, got %+v", rec)
	}
}

func TestPackage_DeduplicatesByID(t *testing.T) {
	p := NewPackager(moderateProfile(), nil)

	a := &domain.Recommendation{RecommendationID: "r1", Instrument: "AAPL"}
	b := &domain.Recommendation{RecommendationID: "r1", Instrument: "AAPL"}
	c := &domain.Recommendation{RecommendationID: "r2", Instrument: "MSFT"}

	out := p.Package([]*domain.Recommendation{a, nil, b, c})
	if len(out) != 2 {
		t.Fatalf("Expected 2 unique recommendations, got %d", len(out))
	}
	if out[0].RecommendationID != "r1" || out[1].RecommendationID != "r2" {
		t.Error("Order of first occurrence must be preserved")
	}
}
