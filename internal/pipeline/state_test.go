package pipeline

import (
	"testing"

	"prediction-pipeline/internal/domain"
)

func TestReduce_DoesNotMutateInput(t *testing.T) {
	state := NewRunState("run-1", "agent-1", "slug", []string{"AAPL"}, "moderate", 1000)

	next := Reduce(state, Delta{
		Stage:  stagePtr(domain.StagePoll),
		Errors: []string{"tool x: timeout"},
		StageDurationMs: map[domain.Stage]int64{
			domain.StagePoll: 42,
		},
		Counters: CounterDelta{ClaimsCollected: 3},
	})

	if state.CurrentStage != domain.StageInit {
		t.Error("Input state stage mutated")
	}
	if len(state.Errors) != 0 {
		t.Error("Input state errors mutated")
	}
	if len(state.Metrics.StageDurationsMs) != 0 {
		t.Error("Input state durations mutated")
	}
	if state.Metrics.ClaimsCollected != 0 {
		t.Error("Input state counters mutated")
	}

	if next.CurrentStage != domain.StagePoll {
		t.Errorf("Stage = %s, want poll", next.CurrentStage)
	}
	if next.Metrics.StageDurationsMs[domain.StagePoll] != 42 {
		t.Error("Duration not recorded")
	}
	if next.Metrics.ClaimsCollected != 3 {
		t.Error("Counter not incremented")
	}
}

func TestReduce_AppendsArrays(t *testing.T) {
	state := NewRunState("run-1", "agent-1", "slug", nil, "moderate", 1000)

	state = Reduce(state, Delta{Errors: []string{"a"}})
	state = Reduce(state, Delta{Errors: []string{"b", "c"}})

	if len(state.Errors) != 3 || state.Errors[0] != "a" || state.Errors[2] != "c" {
		t.Errorf("Errors = %v, want [a b c]", state.Errors)
	}
}

func TestNewRunState_GeneratesRunID(t *testing.T) {
	a := NewRunState("", "agent-1", "slug", nil, "moderate", 1000)
	b := NewRunState("", "agent-1", "slug", nil, "moderate", 1000)
	if a.RunID == "" || a.RunID == b.RunID {
		t.Error("Empty run ID must generate a unique one")
	}
	if a.Status != domain.RunStatusRunning || a.CurrentStage != domain.StageInit {
		t.Error("Fresh state must be running at init")
	}
}
