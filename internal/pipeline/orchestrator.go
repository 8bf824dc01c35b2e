package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"prediction-pipeline/internal/analysis"
	"prediction-pipeline/internal/claims"
	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/ingestion"
	"prediction-pipeline/internal/packaging"
	"prediction-pipeline/internal/storage"
	"prediction-pipeline/internal/triage"
)

// Stores bundles the persistence the store stage writes to.
type Stores struct {
	Datapoints      storage.DatapointStore
	Claims          storage.ClaimStore
	Runs            storage.PipelineRunStore
	Recommendations storage.RecommendationStore
}

// Orchestrator sequences one prediction run through poll, group, triage,
// specialists, evaluators, package and store. Execute never returns an
// error: every fault is folded into the run state.
type Orchestrator struct {
	collectors  []ingestion.Collector
	processor   *claims.Processor
	triageEng   *triage.Engine
	specialists *analysis.SpecialistPool
	evaluators  *analysis.EvaluatorPool
	profiles    map[string]domain.RiskProfile
	stores      Stores
	logger      *log.Logger
	now         func() time.Time
}

// Options for creating an Orchestrator.
type Options struct {
	Collectors  []ingestion.Collector
	Processor   *claims.Processor
	Triage      *triage.Engine
	Specialists *analysis.SpecialistPool
	Evaluators  *analysis.EvaluatorPool
	Profiles    []domain.RiskProfile
	Stores      Stores
	Logger      *log.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	profiles := make(map[string]domain.RiskProfile, len(opts.Profiles))
	for _, p := range opts.Profiles {
		profiles[p.Name] = p
	}

	return &Orchestrator{
		collectors:  opts.Collectors,
		processor:   opts.Processor,
		triageEng:   opts.Triage,
		specialists: opts.Specialists,
		evaluators:  opts.Evaluators,
		profiles:    profiles,
		stores:      opts.Stores,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// RunRequest identifies one pipeline run.
type RunRequest struct {
	RunID       string // generated when empty
	AgentID     string
	AgentSlug   string
	Instruments []string
	RiskProfile string
}

// Execute runs the pipeline end to end and always returns a terminal state.
// Validation failures and panics produce a failed state; absorbed stage
// errors produce a partial one.
func (o *Orchestrator) Execute(ctx context.Context, req RunRequest) (state *domain.PipelineRunState) {
	state = NewRunState(req.RunID, req.AgentID, req.AgentSlug, req.Instruments, req.RiskProfile, o.now().UnixMilli())

	defer func() {
		if r := recover(); r != nil {
			o.logger.Printf("[pipeline] run %s panicked: %v", state.RunID, r)
			state = Reduce(state, Delta{
				Status:      statusPtr(domain.RunStatusFailed),
				CompletedAt: int64Ptr(o.now().UnixMilli()),
				Errors:      []string{fmt.Sprintf("panic: %v", r)},
			})
		}
	}()

	if err := o.validate(req); err != nil {
		o.logger.Printf("[pipeline] run %s rejected: %v", state.RunID, err)
		return Reduce(state, Delta{
			Status:      statusPtr(domain.RunStatusFailed),
			CompletedAt: int64Ptr(o.now().UnixMilli()),
			Errors:      []string{err.Error()},
		})
	}

	state = o.pollStage(ctx, state)
	if state.Status != domain.RunStatusFailed {
		state = o.groupStage(ctx, state)
	}
	if state.Status != domain.RunStatusFailed {
		state = o.triageStage(state)
		state = o.specialistsStage(ctx, state)
		state = o.evaluatorsStage(ctx, state)
		state = o.packageStage(state, o.profiles[state.RiskProfile])
		state = o.storeStage(ctx, state)
	}

	return o.finish(state)
}

func (o *Orchestrator) validate(req RunRequest) error {
	if req.AgentID == "" {
		return fmt.Errorf("agent id is required")
	}
	if req.AgentSlug == "" {
		return fmt.Errorf("agent slug is required")
	}
	if len(req.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	if len(o.collectors) == 0 {
		return fmt.Errorf("no collection tools configured")
	}
	if _, ok := o.profiles[req.RiskProfile]; !ok {
		return fmt.Errorf("unsupported risk profile %q", req.RiskProfile)
	}
	return nil
}

func (o *Orchestrator) pollStage(ctx context.Context, state *domain.PipelineRunState) *domain.PipelineRunState {
	start := o.now()
	nowMs := start.UnixMilli()

	sources, errs := ingestion.PollTools(ctx, o.collectors, nowMs, o.logger)

	delta := Delta{
		Stage:           stagePtr(domain.StagePoll),
		Errors:          errs,
		StageDurationMs: map[domain.Stage]int64{domain.StagePoll: o.sinceMs(start)},
	}

	if len(sources) == 0 {
		delta.Status = statusPtr(domain.RunStatusFailed)
		delta.Errors = append(delta.Errors, "all collection tools failed")
		return Reduce(state, delta)
	}

	dp := ingestion.BuildDatapoint(state.AgentID, state.RunID, sources, nowMs)
	delta.Datapoint = dp
	delta.Counters.ClaimsCollected = len(dp.AllClaims)
	return Reduce(state, delta)
}

func (o *Orchestrator) groupStage(ctx context.Context, state *domain.PipelineRunState) *domain.PipelineRunState {
	start := o.now()

	bundles := o.processor.GroupClaims(state.Datapoint.AllClaims)
	enriched, err := o.processor.EnrichWithHistory(ctx, state.AgentID, bundles, state.Datapoint.Timestamp)

	delta := Delta{
		Stage:           stagePtr(domain.StageGroup),
		StageDurationMs: map[domain.Stage]int64{domain.StageGroup: o.sinceMs(start)},
	}
	if err != nil {
		delta.Status = statusPtr(domain.RunStatusFailed)
		delta.Errors = []string{fmt.Sprintf("history enrichment: %v", err)}
		return Reduce(state, delta)
	}

	delta.Bundles = enriched
	delta.Counters.BundlesCreated = len(enriched)
	for _, b := range enriched {
		if b.ShouldProceed {
			delta.Counters.BundlesProceeded++
		}
	}
	return Reduce(state, delta)
}

func (o *Orchestrator) triageStage(state *domain.PipelineRunState) *domain.PipelineRunState {
	start := o.now()
	results := o.triageEng.Triage(state.Bundles)
	return Reduce(state, Delta{
		Stage:           stagePtr(domain.StageTriage),
		TriageResults:   results,
		StageDurationMs: map[domain.Stage]int64{domain.StageTriage: o.sinceMs(start)},
	})
}

func (o *Orchestrator) specialistsStage(ctx context.Context, state *domain.PipelineRunState) *domain.PipelineRunState {
	start := o.now()

	bundleByInstrument := make(map[string]*domain.EnrichedClaimBundle, len(state.Bundles))
	for _, b := range state.Bundles {
		bundleByInstrument[b.Instrument] = b
	}

	delta := Delta{Stage: stagePtr(domain.StageSpecialists)}
	for _, tr := range state.TriageResults {
		if !tr.Proceed {
			continue
		}
		bundle := bundleByInstrument[tr.Instrument]
		if bundle == nil {
			continue
		}
		analyses, errs := o.specialists.Analyze(ctx, bundle, tr)
		delta.SpecialistAnalyses = append(delta.SpecialistAnalyses, analyses...)
		delta.Errors = append(delta.Errors, errs...)
		delta.Counters.AnalysesCompleted += len(analyses)
	}

	delta.StageDurationMs = map[domain.Stage]int64{domain.StageSpecialists: o.sinceMs(start)}
	return Reduce(state, delta)
}

func (o *Orchestrator) evaluatorsStage(ctx context.Context, state *domain.PipelineRunState) *domain.PipelineRunState {
	start := o.now()

	bundleByInstrument := make(map[string]*domain.EnrichedClaimBundle, len(state.Bundles))
	for _, b := range state.Bundles {
		bundleByInstrument[b.Instrument] = b
	}

	delta := Delta{Stage: stagePtr(domain.StageEvaluators)}
	for _, instrument := range instrumentsWithAnalyses(state) {
		analyses := analysesFor(state, instrument)
		consensus := packaging.BuildConsensus(analyses)
		challenges, errs := o.evaluators.Evaluate(ctx, state.RunID, bundleByInstrument[instrument], analyses, consensus.Action, consensus.Confidence)
		delta.EvaluatorChallenges = append(delta.EvaluatorChallenges, challenges...)
		delta.Errors = append(delta.Errors, errs...)
		delta.Counters.ChallengesCompleted += len(challenges)
	}

	delta.StageDurationMs = map[domain.Stage]int64{domain.StageEvaluators: o.sinceMs(start)}
	return Reduce(state, delta)
}

func (o *Orchestrator) packageStage(state *domain.PipelineRunState, profile domain.RiskProfile) *domain.PipelineRunState {
	start := o.now()

	packager := packaging.NewPackager(profile, o.logger)

	challengesByInstrument := make(map[string][]*domain.EvaluatorChallenge)
	for _, c := range state.EvaluatorChallenges {
		challengesByInstrument[c.Instrument] = append(challengesByInstrument[c.Instrument], c)
	}

	var recs []*domain.Recommendation
	for _, instrument := range instrumentsWithAnalyses(state) {
		rec := packager.BuildRecommendation(state.RunID, instrument, analysesFor(state, instrument), challengesByInstrument[instrument])
		recs = append(recs, rec)
	}
	recs = packager.Package(recs)

	return Reduce(state, Delta{
		Stage:           stagePtr(domain.StagePackage),
		Recommendations: recs,
		Counters:        CounterDelta{RecommendationsEmitted: len(recs)},
		StageDurationMs: map[domain.Stage]int64{domain.StagePackage: o.sinceMs(start)},
	})
}

// storeStage persists the run's outputs. Individual store failures are
// absorbed so a flaky store never invalidates a completed analysis.
func (o *Orchestrator) storeStage(ctx context.Context, state *domain.PipelineRunState) *domain.PipelineRunState {
	start := o.now()

	var errs []string
	if o.stores.Datapoints != nil && state.Datapoint != nil {
		if err := o.stores.Datapoints.Insert(ctx, state.Datapoint); err != nil {
			errs = append(errs, fmt.Sprintf("store datapoint: %v", err))
		}
	}
	if o.stores.Claims != nil && state.Datapoint != nil {
		if err := o.stores.Claims.InsertBatch(ctx, state.AgentID, state.RunID, state.Datapoint.AllClaims); err != nil {
			errs = append(errs, fmt.Sprintf("store claims: %v", err))
		}
	}
	if o.stores.Recommendations != nil && len(state.Recommendations) > 0 {
		if err := o.stores.Recommendations.InsertBulk(ctx, state.RunID, state.Recommendations); err != nil {
			errs = append(errs, fmt.Sprintf("store recommendations: %v", err))
		}
	}

	return Reduce(state, Delta{
		Stage:           stagePtr(domain.StageStore),
		Errors:          errs,
		StageDurationMs: map[domain.Stage]int64{domain.StageStore: o.sinceMs(start)},
	})
}

// finish assigns the terminal status, persists the run record and logs the
// outcome.
func (o *Orchestrator) finish(state *domain.PipelineRunState) *domain.PipelineRunState {
	completedAt := o.now().UnixMilli()

	status := state.Status
	if status != domain.RunStatusFailed {
		status = domain.RunStatusCompleted
		if len(state.Errors) > 0 {
			status = domain.RunStatusPartial
		}
	}

	state = Reduce(state, Delta{
		Stage:       stagePtr(domain.StageComplete),
		Status:      statusPtr(status),
		CompletedAt: int64Ptr(completedAt),
	})

	if o.stores.Runs != nil {
		record := &domain.PipelineRunRecord{
			RunID:               state.RunID,
			AgentID:             state.AgentID,
			AgentSlug:           state.AgentSlug,
			Status:              state.Status,
			StartedAt:           state.StartedAt,
			CompletedAt:         state.CompletedAt,
			RecommendationCount: len(state.Recommendations),
			ErrorCount:          len(state.Errors),
		}
		if state.Datapoint != nil {
			record.DatapointID = state.Datapoint.DatapointID
		}
		if state.Status == domain.RunStatusFailed && len(state.Errors) > 0 {
			record.Error = state.Errors[len(state.Errors)-1]
		}
		if err := o.stores.Runs.Insert(context.Background(), record); err != nil {
			o.logger.Printf("[pipeline] run %s: persist run record: %v", state.RunID, err)
		}
	}

	o.logger.Printf("[pipeline] run %s %s: %d claims, %d bundles, %d recommendations, %d errors",
		state.RunID, state.Status, state.Metrics.ClaimsCollected, state.Metrics.BundlesCreated,
		len(state.Recommendations), len(state.Errors))
	return state
}

func (o *Orchestrator) sinceMs(start time.Time) int64 {
	return o.now().Sub(start).Milliseconds()
}

// instrumentsWithAnalyses returns the sorted instruments that have at least
// one completed specialist analysis.
func instrumentsWithAnalyses(state *domain.PipelineRunState) []string {
	seen := make(map[string]bool)
	var instruments []string
	for _, a := range state.SpecialistAnalyses {
		if !seen[a.Instrument] {
			seen[a.Instrument] = true
			instruments = append(instruments, a.Instrument)
		}
	}
	sort.Strings(instruments)
	return instruments
}

func analysesFor(state *domain.PipelineRunState, instrument string) []*domain.SpecialistAnalysis {
	var out []*domain.SpecialistAnalysis
	for _, a := range state.SpecialistAnalyses {
		if a.Instrument == instrument {
			out = append(out, a)
		}
	}
	return out
}
