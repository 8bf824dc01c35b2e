package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"prediction-pipeline/internal/analysis"
	"prediction-pipeline/internal/analysis/stub"
	"prediction-pipeline/internal/claims"
	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/ingestion"
	"prediction-pipeline/internal/storage/memory"
	"prediction-pipeline/internal/triage"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testClaims() []*domain.Claim {
	return []*domain.Claim{
		{Type: domain.ClaimTypePrice, Instrument: "AAPL", Value: 190, Confidence: 0.9, Timestamp: 1700000000000},
		{Type: domain.ClaimTypeVolume, Instrument: "AAPL", Value: 5e7, Confidence: 0.9, Timestamp: 1700000000000},
		{Type: domain.ClaimTypePrice, Instrument: "MSFT", Value: 410, Confidence: 0.9, Timestamp: 1700000000000},
	}
}

type harness struct {
	collectors      []ingestion.Collector
	invoker         *stub.Invoker
	minSignificance float64
	stores          Stores
	runStore        *memory.PipelineRunStore
}

func newHarness() *harness {
	runStore := memory.NewPipelineRunStore()
	return &harness{
		collectors: []ingestion.Collector{
			&ingestion.StaticSource{ID: "prices", Claims: testClaims()},
		},
		// Specialists are invoked before evaluators: four specialist replies
		// (two bundles, two specialists each), then the evaluator reply
		// repeats for the rest of the run.
		invoker: stub.NewInvoker(
			`{"conclusion": "bullish", "confidence": 0.8, "analysis": "momentum", "suggested_action": "buy"}`,
			`{"conclusion": "bullish", "confidence": 0.8, "analysis": "valuation", "suggested_action": "buy"}`,
			`{"conclusion": "bullish", "confidence": 0.8, "analysis": "momentum", "suggested_action": "buy"}`,
			`{"conclusion": "bullish", "confidence": 0.8, "analysis": "valuation", "suggested_action": "buy"}`,
			`{"passed": true, "challenge": "thesis holds up", "confidence": 0.6}`,
		),
		stores: Stores{
			Datapoints:      memory.NewDatapointStore(),
			Claims:          memory.NewClaimStore(),
			Runs:            runStore,
			Recommendations: memory.NewRecommendationStore(),
		},
		runStore: runStore,
	}
}

func (h *harness) orchestrator() *Orchestrator {
	logger := quietLogger()

	processor := claims.NewProcessor(claims.Options{
		ClaimStore: h.stores.Claims,
		Thresholds: domain.TriageThresholds{MinSignificanceScore: h.minSignificance, LookbackHours: 24},
		Logger:     logger,
	})

	specs := []domain.SpecialistSpec{
		{Name: "momentum", Team: "technical", SystemPrompt: "sys", PromptTemplate: "Analyze:\n%s"},
		{Name: "valuation", Team: "fundamental", SystemPrompt: "sys", PromptTemplate: "Analyze:\n%s"},
	}
	evals := []domain.EvaluatorSpec{
		{Name: "bear", ChallengeType: domain.ChallengeContrarian, SystemPrompt: "sys", PromptTemplate: "Challenge:\n%s"},
	}

	return NewOrchestrator(Options{
		Collectors:  h.collectors,
		Processor:   processor,
		Triage:      triage.NewEngine(triage.Options{Teams: []string{"technical", "fundamental"}}),
		Specialists: analysis.NewSpecialistPool(h.invoker, specs, logger),
		Evaluators:  analysis.NewEvaluatorPool(h.invoker, evals, logger),
		Profiles: []domain.RiskProfile{
			{Name: "moderate", AllocationPct: 0.05, StopLossPct: 0.08, TimeHorizon: "swing", MinConfidence: 0.1},
		},
		Stores: h.stores,
		Logger: logger,
	})
}

func request() RunRequest {
	return RunRequest{
		AgentID:     "agent-1",
		AgentSlug:   "equities-moderate",
		Instruments: []string{"AAPL", "MSFT"},
		RiskProfile: "moderate",
	}
}

func TestExecute_HappyPath(t *testing.T) {
	h := newHarness()
	state := h.orchestrator().Execute(context.Background(), request())

	if state.Status != domain.RunStatusCompleted {
		t.Fatalf("Status = %s, want completed (errors: %v)", state.Status, state.Errors)
	}
	if state.CurrentStage != domain.StageComplete {
		t.Errorf("CurrentStage = %s, want complete", state.CurrentStage)
	}
	if state.Metrics.ClaimsCollected != 3 {
		t.Errorf("ClaimsCollected = %d, want 3", state.Metrics.ClaimsCollected)
	}
	if state.Metrics.BundlesCreated != 2 {
		t.Errorf("BundlesCreated = %d, want 2", state.Metrics.BundlesCreated)
	}
	if len(state.Recommendations) == 0 {
		t.Fatal("Expected recommendations")
	}
	if state.CompletedAt == 0 {
		t.Error("CompletedAt must be set")
	}

	// Run record persisted.
	record, err := h.runStore.GetByID(context.Background(), state.RunID)
	if err != nil {
		t.Fatalf("Run record not persisted: %v", err)
	}
	if record.Status != domain.RunStatusCompleted || record.RecommendationCount != len(state.Recommendations) {
		t.Errorf("Run record mismatch: %+v", record)
	}

	// Stored recommendations match the state.
	stored, err := h.stores.Recommendations.GetByRunID(context.Background(), state.RunID)
	if err != nil || len(stored) != len(state.Recommendations) {
		t.Errorf("Stored recommendations mismatch: %v, %d", err, len(stored))
	}
}

func TestExecute_ThresholdBelowDefaultSignificance(t *testing.T) {
	// A first run has no history, so every bundle carries the cold-start
	// significance of 0.5. A threshold under that admits the bundle.
	h := newHarness()
	h.minSignificance = 0.3
	h.collectors = []ingestion.Collector{
		&ingestion.StaticSource{ID: "prices", Claims: []*domain.Claim{
			{Type: domain.ClaimTypePrice, Instrument: "AAPL", Value: 190, Confidence: 0.9, Timestamp: 1700000000000},
			{Type: domain.ClaimTypeVolume, Instrument: "AAPL", Value: 5e7, Confidence: 0.9, Timestamp: 1700000000000},
		}},
	}
	// One bundle, two specialists, then the repeating evaluator reply.
	h.invoker = stub.NewInvoker(
		`{"conclusion": "bullish", "confidence": 0.8, "analysis": "momentum", "suggested_action": "buy"}`,
		`{"conclusion": "bullish", "confidence": 0.8, "analysis": "valuation", "suggested_action": "buy"}`,
		`{"passed": true, "challenge": "thesis holds up", "confidence": 0.6}`,
	)

	req := request()
	req.Instruments = []string{"AAPL"}
	state := h.orchestrator().Execute(context.Background(), req)

	if state.Status != domain.RunStatusCompleted {
		t.Fatalf("Status = %s, want completed (errors: %v)", state.Status, state.Errors)
	}
	if state.Metrics.BundlesProceeded != 1 {
		t.Errorf("BundlesProceeded = %d, want 1", state.Metrics.BundlesProceeded)
	}
	if len(state.Recommendations) != 1 {
		t.Fatalf("Recommendations = %d, want exactly 1", len(state.Recommendations))
	}
	if state.Recommendations[0].Instrument != "AAPL" {
		t.Errorf("Instrument = %s, want AAPL", state.Recommendations[0].Instrument)
	}
}

func TestExecute_ThresholdAboveDefaultSignificance(t *testing.T) {
	// Nothing clears a 0.9 bar on a cold start. The run still completes
	// with an empty result; filtered-out bundles never reach the model.
	h := newHarness()
	h.minSignificance = 0.9

	state := h.orchestrator().Execute(context.Background(), request())

	if state.Status != domain.RunStatusCompleted {
		t.Fatalf("Status = %s, want completed (errors: %v)", state.Status, state.Errors)
	}
	if state.Metrics.BundlesCreated != 2 || state.Metrics.BundlesProceeded != 0 {
		t.Errorf("Bundles = %d created / %d proceeded, want 2 / 0",
			state.Metrics.BundlesCreated, state.Metrics.BundlesProceeded)
	}
	if len(state.Recommendations) != 0 {
		t.Errorf("Recommendations = %d, want none", len(state.Recommendations))
	}
	if calls := h.invoker.Calls(); len(calls) != 0 {
		t.Errorf("Model invoked %d times for filtered-out bundles", len(calls))
	}

	record, err := h.runStore.GetByID(context.Background(), state.RunID)
	if err != nil {
		t.Fatalf("Empty runs are persisted too: %v", err)
	}
	if record.RecommendationCount != 0 {
		t.Errorf("RecommendationCount = %d, want 0", record.RecommendationCount)
	}
}

func TestExecute_AllToolsFail(t *testing.T) {
	h := newHarness()
	h.collectors = []ingestion.Collector{
		&ingestion.StaticSource{ID: "a", Err: errors.New("timeout")},
		&ingestion.StaticSource{ID: "b", Err: errors.New("503")},
	}

	state := h.orchestrator().Execute(context.Background(), request())

	if state.Status != domain.RunStatusFailed {
		t.Fatalf("Status = %s, want failed", state.Status)
	}
	if len(state.Recommendations) != 0 {
		t.Error("Failed poll must not emit recommendations")
	}
	// Per-tool errors plus the terminal cause are all recorded.
	if len(state.Errors) != 3 {
		t.Errorf("Errors = %v, want 2 tool errors plus terminal cause", state.Errors)
	}

	record, err := h.runStore.GetByID(context.Background(), state.RunID)
	if err != nil {
		t.Fatalf("Failed runs are persisted too: %v", err)
	}
	if record.Error == "" {
		t.Error("Run record must carry the terminal error")
	}
}

func TestExecute_PartialToolFailure(t *testing.T) {
	h := newHarness()
	h.collectors = append(h.collectors, &ingestion.StaticSource{ID: "flaky", Err: errors.New("timeout")})

	state := h.orchestrator().Execute(context.Background(), request())

	if state.Status != domain.RunStatusPartial {
		t.Fatalf("Status = %s, want partial", state.Status)
	}
	if len(state.Recommendations) == 0 {
		t.Error("Surviving sources must still produce recommendations")
	}
	found := false
	for _, e := range state.Errors {
		if strings.Contains(e, "flaky") {
			found = true
		}
	}
	if !found {
		t.Errorf("Failed tool must be recorded: %v", state.Errors)
	}
}

func TestExecute_SpecialistFailureIsAbsorbed(t *testing.T) {
	h := newHarness()
	h.invoker.FailWith(errors.New("rate limited"))

	state := h.orchestrator().Execute(context.Background(), request())

	if state.Status != domain.RunStatusPartial {
		t.Fatalf("Status = %s, want partial", state.Status)
	}
	if state.Metrics.AnalysesCompleted == 0 {
		t.Error("Other specialists must still complete")
	}
	if len(state.Recommendations) == 0 {
		t.Error("Surviving analyses must still package")
	}
}

func TestExecute_UnsupportedRiskProfile(t *testing.T) {
	h := newHarness()
	req := request()
	req.RiskProfile = "yolo"

	state := h.orchestrator().Execute(context.Background(), req)

	if state.Status != domain.RunStatusFailed {
		t.Fatalf("Status = %s, want failed", state.Status)
	}
	if state.CurrentStage != domain.StageComplete && state.CurrentStage != domain.StageInit {
		t.Errorf("Validation failure must not advance stages, got %s", state.CurrentStage)
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "risk profile") {
		t.Errorf("Errors = %v, want single validation error", state.Errors)
	}
}

func TestExecute_MissingAgentID(t *testing.T) {
	h := newHarness()
	req := request()
	req.AgentID = ""

	state := h.orchestrator().Execute(context.Background(), req)
	if state.Status != domain.RunStatusFailed {
		t.Errorf("Status = %s, want failed", state.Status)
	}
}

func TestExecute_EmptyInstruments(t *testing.T) {
	h := newHarness()
	req := request()
	req.Instruments = nil

	state := h.orchestrator().Execute(context.Background(), req)
	if state.Status != domain.RunStatusFailed {
		t.Errorf("Status = %s, want failed", state.Status)
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "instrument") {
		t.Errorf("Errors = %v, want single instrument validation error", state.Errors)
	}
	if state.Datapoint != nil {
		t.Error("Validation failure must not reach the poll stage")
	}
}

func TestExecute_RecoverFromPanic(t *testing.T) {
	h := newHarness()
	h.collectors = []ingestion.Collector{&panickingSource{}}

	state := h.orchestrator().Execute(context.Background(), request())

	if state.Status != domain.RunStatusFailed {
		t.Fatalf("Status = %s, want failed after panic", state.Status)
	}
	if len(state.Errors) == 0 || !strings.Contains(state.Errors[0], "panic") {
		t.Errorf("Panic must be recorded: %v", state.Errors)
	}
	if state.CompletedAt == 0 {
		t.Error("Panicked run must still be terminal")
	}
}

func TestExecute_StageDurationsRecorded(t *testing.T) {
	h := newHarness()

	base := time.UnixMilli(1700000000000)
	tick := 0
	orch := h.orchestrator().WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 10 * time.Millisecond)
	})

	state := orch.Execute(context.Background(), request())

	for _, stage := range []domain.Stage{domain.StagePoll, domain.StageGroup, domain.StageTriage, domain.StageSpecialists, domain.StageEvaluators, domain.StagePackage, domain.StageStore} {
		if _, ok := state.Metrics.StageDurationsMs[stage]; !ok {
			t.Errorf("Missing duration for stage %s", stage)
		}
	}
}

type panickingSource struct{}

func (p *panickingSource) ToolID() string { return "boom" }
func (p *panickingSource) Collect(context.Context) ([]*domain.Claim, error) {
	panic("collector bug")
}
