// Package pipeline sequences a prediction run through its stages and owns
// the run-scoped state.
package pipeline

import (
	"github.com/google/uuid"

	"prediction-pipeline/internal/domain"
)

// Delta is a partial state update produced by one stage. Scalar fields are
// replace-on-set (nil means leave unchanged), slice fields append. Stages
// never mutate state directly; they return deltas and the reducer merges
// them, so state transitions stay auditable and stages stay pure.
type Delta struct {
	Stage       *domain.Stage
	Status      *domain.RunStatus
	CompletedAt *int64

	Datapoint           *domain.Datapoint
	Bundles             []*domain.EnrichedClaimBundle
	TriageResults       []*domain.TriageResult
	SpecialistAnalyses  []*domain.SpecialistAnalysis
	EvaluatorChallenges []*domain.EvaluatorChallenge
	Recommendations     []*domain.Recommendation
	Errors              []string

	StageDurationMs map[domain.Stage]int64
	Counters        CounterDelta
}

// CounterDelta increments run metrics counters.
type CounterDelta struct {
	ClaimsCollected        int
	BundlesCreated         int
	BundlesProceeded       int
	AnalysesCompleted      int
	ChallengesCompleted    int
	RecommendationsEmitted int
}

// stagePtr and statusPtr keep delta construction terse in stage code.
func stagePtr(s domain.Stage) *domain.Stage          { return &s }
func statusPtr(s domain.RunStatus) *domain.RunStatus { return &s }
func int64Ptr(v int64) *int64                        { return &v }

// NewRunState initializes state for one run. RunID is generated when empty.
func NewRunState(runID, agentID, agentSlug string, instruments []string, riskProfile string, startedAtMs int64) *domain.PipelineRunState {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &domain.PipelineRunState{
		RunID:        runID,
		AgentID:      agentID,
		AgentSlug:    agentSlug,
		Instruments:  append([]string(nil), instruments...),
		RiskProfile:  riskProfile,
		CurrentStage: domain.StageInit,
		Status:       domain.RunStatusRunning,
		StartedAt:    startedAtMs,
		Metrics: domain.RunMetrics{
			StageDurationsMs: make(map[domain.Stage]int64),
		},
	}
}

// Reduce merges a delta into the state and returns the merged state. The
// input state is not modified.
func Reduce(state *domain.PipelineRunState, d Delta) *domain.PipelineRunState {
	next := *state

	if d.Stage != nil {
		next.CurrentStage = *d.Stage
	}
	if d.Status != nil {
		next.Status = *d.Status
	}
	if d.CompletedAt != nil {
		next.CompletedAt = *d.CompletedAt
	}
	if d.Datapoint != nil {
		next.Datapoint = d.Datapoint
	}

	if len(d.Bundles) > 0 {
		next.Bundles = append(append([]*domain.EnrichedClaimBundle(nil), state.Bundles...), d.Bundles...)
	}
	if len(d.TriageResults) > 0 {
		next.TriageResults = append(append([]*domain.TriageResult(nil), state.TriageResults...), d.TriageResults...)
	}
	if len(d.SpecialistAnalyses) > 0 {
		next.SpecialistAnalyses = append(append([]*domain.SpecialistAnalysis(nil), state.SpecialistAnalyses...), d.SpecialistAnalyses...)
	}
	if len(d.EvaluatorChallenges) > 0 {
		next.EvaluatorChallenges = append(append([]*domain.EvaluatorChallenge(nil), state.EvaluatorChallenges...), d.EvaluatorChallenges...)
	}
	if len(d.Recommendations) > 0 {
		next.Recommendations = append(append([]*domain.Recommendation(nil), state.Recommendations...), d.Recommendations...)
	}
	if len(d.Errors) > 0 {
		next.Errors = append(append([]string(nil), state.Errors...), d.Errors...)
	}

	if len(d.StageDurationMs) > 0 {
		durations := make(map[domain.Stage]int64, len(state.Metrics.StageDurationsMs)+len(d.StageDurationMs))
		for k, v := range state.Metrics.StageDurationsMs {
			durations[k] = v
		}
		for k, v := range d.StageDurationMs {
			durations[k] = v
		}
		next.Metrics.StageDurationsMs = durations
	}

	next.Metrics.ClaimsCollected += d.Counters.ClaimsCollected
	next.Metrics.BundlesCreated += d.Counters.BundlesCreated
	next.Metrics.BundlesProceeded += d.Counters.BundlesProceeded
	next.Metrics.AnalysesCompleted += d.Counters.AnalysesCompleted
	next.Metrics.ChallengesCompleted += d.Counters.ChallengesCompleted
	next.Metrics.RecommendationsEmitted += d.Counters.RecommendationsEmitted

	return &next
}
