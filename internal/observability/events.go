package observability

import (
	"prediction-pipeline/internal/domain"
)

// AlertMetricsSink feeds alert lifecycle events into the Prometheus
// counters. It satisfies the alerting event sink contract.
type AlertMetricsSink struct{}

func (AlertMetricsSink) AlertRaised(a *domain.Alert) {
	RecordAlertRaised(a.Severity)
}

func (AlertMetricsSink) AlertEscalated(a *domain.Alert) {
	RecordAlertRaised(a.Severity)
}

func (AlertMetricsSink) AlertResolved(*domain.Alert) {
	DefaultMetrics.AlertsResolved.Inc()
}

// ObserveRunState folds a terminal run state into the run counters.
func ObserveRunState(state *domain.PipelineRunState) {
	durations := make(map[string]int64, len(state.Metrics.StageDurationsMs))
	for stage, ms := range state.Metrics.StageDurationsMs {
		durations[string(stage)] = ms
	}
	RecordPipelineRun(string(state.Status), durations)

	DefaultMetrics.ClaimsCollected.Add(float64(state.Metrics.ClaimsCollected))
	DefaultMetrics.BundlesCreated.Add(float64(state.Metrics.BundlesCreated))
	DefaultMetrics.BundlesProceeded.Add(float64(state.Metrics.BundlesProceeded))
	for _, r := range state.Recommendations {
		RecordRecommendation(r.Action)
	}

	if state.Status == domain.RunStatusCompleted || state.Status == domain.RunStatusPartial {
		DefaultMetrics.LastSuccessfulRun.Set(float64(state.CompletedAt) / 1000)
	}
}
