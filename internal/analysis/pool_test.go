package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prediction-pipeline/internal/analysis/stub"
	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/idhash"
)

func enrichedBundle(instrument string) *domain.EnrichedClaimBundle {
	return &domain.EnrichedClaimBundle{
		ClaimBundle: domain.ClaimBundle{
			Instrument: instrument,
			Claims: []*domain.Claim{
				{Type: domain.ClaimTypePrice, Instrument: instrument, Value: 100, Confidence: 0.9},
			},
		},
		Diff:          &domain.ClaimsDiff{SignificanceScore: 0.7},
		ShouldProceed: true,
	}
}

func specialistCatalog() []domain.SpecialistSpec {
	return []domain.SpecialistSpec{
		{Name: "momentum", Team: "technical", SystemPrompt: "sys", PromptTemplate: "Analyze:\n%s"},
		{Name: "valuation", Team: "fundamental", SystemPrompt: "sys", PromptTemplate: "Analyze:\n%s"},
		{Name: "flow", Team: "technical", SystemPrompt: "sys", PromptTemplate: "Analyze:\n%s"},
	}
}

func TestSpecialistPool_FiltersByTeam(t *testing.T) {
	invoker := stub.NewInvoker(`{"conclusion": "bullish", "confidence": 0.8, "analysis": "up"}`)
	pool := NewSpecialistPool(invoker, specialistCatalog(), nil)

	analyses, errs := pool.Analyze(context.Background(), enrichedBundle("AAPL"), &domain.TriageResult{
		Instrument:      "AAPL",
		SpecialistTeams: []string{"technical"},
	})

	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(analyses) != 2 {
		t.Fatalf("Expected 2 technical specialists, got %d", len(analyses))
	}
	for _, a := range analyses {
		if a.Specialist != "momentum" && a.Specialist != "flow" {
			t.Errorf("Unexpected specialist ran: %s", a.Specialist)
		}
		if a.Instrument != "AAPL" {
			t.Errorf("Instrument = %s, want AAPL", a.Instrument)
		}
	}
}

func TestSpecialistPool_AbsorbsSingleFailure(t *testing.T) {
	invoker := stub.NewInvoker(`{"conclusion": "bullish", "confidence": 0.8, "analysis": "up"}`)
	invoker.FailWith(errors.New("rate limited"))
	pool := NewSpecialistPool(invoker, specialistCatalog(), nil)

	analyses, errs := pool.Analyze(context.Background(), enrichedBundle("AAPL"), &domain.TriageResult{
		Instrument:      "AAPL",
		SpecialistTeams: []string{"technical", "fundamental"},
	})

	if len(errs) != 1 {
		t.Fatalf("Expected exactly 1 absorbed error, got %d", len(errs))
	}
	if !strings.Contains(errs[0], "rate limited") {
		t.Errorf("Error should carry cause, got %q", errs[0])
	}
	if len(analyses) != 2 {
		t.Errorf("Surviving specialists should still report, got %d", len(analyses))
	}
}

type panickingInvoker struct{}

func (panickingInvoker) Invoke(context.Context, string, string) (string, error) {
	panic("invoker bug")
}

func TestSpecialistPool_AbsorbsPanic(t *testing.T) {
	pool := NewSpecialistPool(panickingInvoker{}, specialistCatalog(), nil)

	analyses, errs := pool.Analyze(context.Background(), enrichedBundle("AAPL"), &domain.TriageResult{
		Instrument:      "AAPL",
		SpecialistTeams: []string{"technical"},
	})

	if len(analyses) != 0 {
		t.Fatalf("No analyses expected, got %d", len(analyses))
	}
	if len(errs) != 2 {
		t.Fatalf("Each panicking specialist settles as a failure, got %v", errs)
	}
	for _, e := range errs {
		if !strings.Contains(e, "panic") {
			t.Errorf("Error should record the panic, got %q", e)
		}
	}
}

func TestEvaluatorPool_AbsorbsPanic(t *testing.T) {
	pool := NewEvaluatorPool(panickingInvoker{}, []domain.EvaluatorSpec{
		{Name: "bear", ChallengeType: domain.ChallengeContrarian, SystemPrompt: "sys", PromptTemplate: "Challenge:\n%s"},
	}, nil)

	analyses := []*domain.SpecialistAnalysis{
		{Specialist: "momentum", Instrument: "AAPL", Conclusion: domain.ConclusionBullish, Confidence: 0.8},
	}

	challenges, errs := pool.Evaluate(context.Background(), "run-1", enrichedBundle("AAPL"), analyses, domain.ActionBuy, 0.8)
	if len(challenges) != 0 {
		t.Fatalf("No challenges expected, got %d", len(challenges))
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "panic") {
		t.Errorf("Panicking evaluator settles as a failure, got %v", errs)
	}
}

func TestSpecialistPool_NoApplicableTeams(t *testing.T) {
	pool := NewSpecialistPool(stub.NewInvoker(), specialistCatalog(), nil)

	analyses, errs := pool.Analyze(context.Background(), enrichedBundle("AAPL"), &domain.TriageResult{
		Instrument:      "AAPL",
		SpecialistTeams: nil,
	})
	if len(analyses) != 0 || len(errs) != 0 {
		t.Error("No teams selected should produce no work")
	}
}

func TestEvaluatorPool_AttachesRecommendationID(t *testing.T) {
	invoker := stub.NewInvoker(`{"passed": false, "challenge": "crowded trade", "confidence": 0.75}`)
	pool := NewEvaluatorPool(invoker, []domain.EvaluatorSpec{
		{Name: "bear", ChallengeType: domain.ChallengeContrarian, SystemPrompt: "sys", PromptTemplate: "Challenge:\n%s"},
		{Name: "risk", ChallengeType: domain.ChallengeRiskAssessment, SystemPrompt: "sys", PromptTemplate: "Challenge:\n%s"},
	}, nil)

	analyses := []*domain.SpecialistAnalysis{
		{Specialist: "momentum", Instrument: "AAPL", Conclusion: domain.ConclusionBullish, Confidence: 0.8},
	}

	challenges, errs := pool.Evaluate(context.Background(), "run-1", enrichedBundle("AAPL"), analyses, domain.ActionBuy, 0.8)
	if len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if len(challenges) != 2 {
		t.Fatalf("Expected 2 challenges, got %d", len(challenges))
	}

	wantID := idhash.ComputeRecommendationID("run-1", "AAPL", domain.ActionBuy)
	for _, c := range challenges {
		if c.RecommendationID != wantID {
			t.Errorf("RecommendationID = %s, want %s", c.RecommendationID, wantID)
		}
	}
}

func TestEvaluatorPool_NoAnalysesNoChallenges(t *testing.T) {
	pool := NewEvaluatorPool(stub.NewInvoker(), []domain.EvaluatorSpec{
		{Name: "bear", ChallengeType: domain.ChallengeContrarian},
	}, nil)

	challenges, errs := pool.Evaluate(context.Background(), "run-1", enrichedBundle("AAPL"), nil, domain.ActionHold, 0)
	if len(challenges) != 0 || len(errs) != 0 {
		t.Error("No specialist analyses should mean no evaluator work")
	}
}
