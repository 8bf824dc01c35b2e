package domain

// Stage identifies a pipeline stage.
type Stage string

// Pipeline stages in execution order.
const (
	StageInit        Stage = "init"
	StagePoll        Stage = "poll"
	StageGroup       Stage = "group"
	StageTriage      Stage = "triage"
	StageSpecialists Stage = "specialists"
	StageEvaluators  Stage = "evaluators"
	StagePackage     Stage = "package"
	StageStore       Stage = "store"
	StageComplete    Stage = "complete"
)

// RunStatus is the terminal status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPartial   RunStatus = "partial"
)

// RunMetrics accumulates counters and per-stage timings for a run.
type RunMetrics struct {
	StageDurationsMs       map[Stage]int64
	ClaimsCollected        int
	BundlesCreated         int
	BundlesProceeded       int
	AnalysesCompleted      int
	ChallengesCompleted    int
	RecommendationsEmitted int
}

// PipelineRunState is the run-scoped aggregate of all pipeline output.
// It is exclusively owned by its run and never shared across runs.
type PipelineRunState struct {
	RunID       string
	AgentID     string
	AgentSlug   string
	Instruments []string
	RiskProfile string

	CurrentStage Stage
	Status       RunStatus
	StartedAt    int64 // ms
	CompletedAt  int64 // ms, 0 while running

	Datapoint           *Datapoint
	Bundles             []*EnrichedClaimBundle
	TriageResults       []*TriageResult
	SpecialistAnalyses  []*SpecialistAnalysis
	EvaluatorChallenges []*EvaluatorChallenge
	Recommendations     []*Recommendation
	Errors              []string

	Metrics RunMetrics
}

// PipelineRunRecord is the persisted summary of a completed run.
type PipelineRunRecord struct {
	RunID               string
	AgentID             string
	AgentSlug           string
	Status              RunStatus
	DatapointID         string
	StartedAt           int64
	CompletedAt         int64
	RecommendationCount int
	ErrorCount          int
	Error               string
}
