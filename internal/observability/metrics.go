// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Collection metrics
	ClaimsCollected prometheus.Counter
	ToolPollErrors  *prometheus.CounterVec
	ToolPollLatency *prometheus.HistogramVec
	InvalidClaims   prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal    *prometheus.CounterVec
	StageDuration        *prometheus.HistogramVec
	BundlesCreated       prometheus.Counter
	BundlesProceeded     prometheus.Counter
	RecommendationsTotal *prometheus.CounterVec

	// Analysis metrics
	SpecialistInvocations *prometheus.CounterVec
	EvaluatorChallenges   *prometheus.CounterVec
	ModelInvocationErrors *prometheus.CounterVec

	// Backpressure metrics
	RunsRejected    *prometheus.CounterVec
	TokensAvailable prometheus.Gauge
	RunsInFlight    prometheus.Gauge
	QueueDepth      prometheus.Gauge

	// Alerting metrics
	AlertsRaised   *prometheus.CounterVec
	AlertsResolved prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "prediction_pipeline"
	}

	return &Metrics{
		// Collection metrics
		ClaimsCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "claims_collected_total",
			Help:      "Total number of claims collected from all tools",
		}),
		ToolPollErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tool_poll_errors_total",
			Help:      "Total number of tool poll failures by tool",
		}, []string{"tool"}),
		ToolPollLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tool_poll_latency_seconds",
			Help:      "Tool poll latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		InvalidClaims: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "invalid_claims_dropped_total",
			Help:      "Total number of claims dropped at the validation boundary",
		}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		BundlesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "bundles_created_total",
			Help:      "Total number of instrument bundles created",
		}),
		BundlesProceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "bundles_proceeded_total",
			Help:      "Total number of bundles that passed the significance pre-filter",
		}),
		RecommendationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "recommendations_total",
			Help:      "Total number of recommendations emitted by action",
		}, []string{"action"}),

		// Analysis metrics
		SpecialistInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "specialist_invocations_total",
			Help:      "Total number of specialist invocations by outcome",
		}, []string{"specialist", "outcome"}),
		EvaluatorChallenges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "evaluator_challenges_total",
			Help:      "Total number of evaluator challenges by result",
		}, []string{"evaluator", "result"}),
		ModelInvocationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "model_invocation_errors_total",
			Help:      "Total number of model invocation errors by role",
		}, []string{"role"}),

		// Backpressure metrics
		RunsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backpressure",
			Name:      "runs_rejected_total",
			Help:      "Total number of run admissions rejected by reason",
		}, []string{"reason"}),
		TokensAvailable: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backpressure",
			Name:      "tokens_available",
			Help:      "Current number of admission tokens available",
		}),
		RunsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backpressure",
			Name:      "runs_in_flight",
			Help:      "Current number of runs executing",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backpressure",
			Name:      "queue_depth",
			Help:      "Current scheduler queue depth",
		}),

		// Alerting metrics
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_raised_total",
			Help:      "Total number of alerts raised by severity",
		}, []string{"severity"}),
		AlertsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "alerts_resolved_total",
			Help:      "Total number of alerts resolved",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last completed pipeline run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordToolPoll records one tool poll.
func RecordToolPoll(tool string, seconds float64, err error) {
	DefaultMetrics.ToolPollLatency.WithLabelValues(tool).Observe(seconds)
	if err != nil {
		DefaultMetrics.ToolPollErrors.WithLabelValues(tool).Inc()
	}
}

// RecordPipelineRun records a completed run and its per-stage timings.
func RecordPipelineRun(status string, stageDurationsMs map[string]int64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	for stage, ms := range stageDurationsMs {
		DefaultMetrics.StageDuration.WithLabelValues(stage).Observe(float64(ms) / 1000)
	}
}

// RecordRecommendation increments the recommendation counter for an action.
func RecordRecommendation(action string) {
	DefaultMetrics.RecommendationsTotal.WithLabelValues(action).Inc()
}

// RecordRejection increments the backpressure rejection counter.
func RecordRejection(reason string) {
	DefaultMetrics.RunsRejected.WithLabelValues(reason).Inc()
}

// UpdateBackpressure updates the backpressure gauges.
func UpdateBackpressure(tokens float64, inFlight, queueDepth int) {
	DefaultMetrics.TokensAvailable.Set(tokens)
	DefaultMetrics.RunsInFlight.Set(float64(inFlight))
	DefaultMetrics.QueueDepth.Set(float64(queueDepth))
}

// RecordAlertRaised increments the alerts raised counter.
func RecordAlertRaised(severity string) {
	DefaultMetrics.AlertsRaised.WithLabelValues(severity).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
