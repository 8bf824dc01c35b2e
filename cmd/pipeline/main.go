// Package main provides a one-shot pipeline entry point.
// Executes: poll → group → triage → specialists → evaluators → package → store
// against in-memory storage and fixture collectors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prediction-pipeline/internal/analysis"
	"prediction-pipeline/internal/claims"
	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/ingestion"
	"prediction-pipeline/internal/pipeline"
	"prediction-pipeline/internal/registry"
	"prediction-pipeline/internal/storage/memory"
	"prediction-pipeline/internal/triage"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags
	assetClass := flag.String("asset-class", "equities", "Asset class slug (equities, crypto)")
	profile := flag.String("profile", "moderate", "Risk profile name")
	agentID := flag.String("agent-id", "agent-demo", "Agent identifier")
	model := flag.String("model", os.Getenv("OPENAI_MODEL"), "Model for specialist/evaluator calls")
	flag.Parse()

	logger := log.New(os.Stdout, "[pipeline] ", log.LstdFlags)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	class, err := registry.Lookup(*assetClass)
	if err != nil {
		logger.Fatalf("Unknown asset class: %v", err)
	}
	if _, err := class.Profile(*profile); err != nil {
		logger.Fatalf("Unknown risk profile: %v", err)
	}

	// Without an API key the run uses canned model replies, which still
	// exercises every stage end to end.
	var invoker analysis.Invoker
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		invoker = analysis.NewOpenAIInvoker(analysis.OpenAIOptions{
			APIKey:  key,
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   *model,
		})
		logger.Println("Using OpenAI-backed invoker")
	} else {
		invoker = &cannedInvoker{}
		logger.Println("OPENAI_API_KEY not set, using canned model replies")
	}

	claimStore := memory.NewClaimStore()
	stores := pipeline.Stores{
		Datapoints:      memory.NewDatapointStore(),
		Claims:          claimStore,
		Runs:            memory.NewPipelineRunStore(),
		Recommendations: memory.NewRecommendationStore(),
	}

	now := time.Now().UnixMilli()
	collectors := fixtureCollectors(now)

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Collectors: collectors,
		Processor: claims.NewProcessor(claims.Options{
			ClaimStore: claimStore,
			Thresholds: class.Thresholds,
			Logger:     logger,
		}),
		Triage:      triage.NewEngine(triage.Options{Teams: class.Teams}),
		Specialists: analysis.NewSpecialistPool(invoker, class.Specialists, logger),
		Evaluators:  analysis.NewEvaluatorPool(invoker, class.Evaluators, logger),
		Profiles:    class.Profiles,
		Stores:      stores,
		Logger:      logger,
	})

	state := orch.Execute(ctx, pipeline.RunRequest{
		AgentID:     *agentID,
		AgentSlug:   class.Slug,
		Instruments: []string{"AAPL", "NVDA"},
		RiskProfile: *profile,
	})

	printRunSummary(state)

	if state.Status == domain.RunStatusFailed {
		os.Exit(1)
	}
}

// fixtureCollectors returns static collectors standing in for live feeds.
func fixtureCollectors(nowMs int64) []ingestion.Collector {
	return []ingestion.Collector{
		&ingestion.StaticSource{
			ID: "market-feed",
			Claims: []*domain.Claim{
				{Type: domain.ClaimTypePrice, Instrument: "AAPL", Value: 192.40, Confidence: 1, Timestamp: nowMs},
				{Type: domain.ClaimTypeVolume, Instrument: "AAPL", Value: 6.1e7, Confidence: 1, Timestamp: nowMs},
				{Type: domain.ClaimTypePrice, Instrument: "NVDA", Value: 131.20, Confidence: 1, Timestamp: nowMs},
				{Type: domain.ClaimTypeVolume, Instrument: "NVDA", Value: 2.4e8, Confidence: 1, Timestamp: nowMs},
			},
		},
		&ingestion.StaticSource{
			ID: "news-feed",
			Claims: []*domain.Claim{
				{Type: domain.ClaimTypeNews, Instrument: "NVDA", Value: 0.8, Detail: "datacenter revenue beats estimates", Confidence: 0.9, Timestamp: nowMs},
				{Type: domain.ClaimTypeSentiment, Instrument: "AAPL", Value: 0.2, Detail: "mixed reaction to product event", Confidence: 0.6, Timestamp: nowMs},
			},
		},
	}
}

// printRunSummary writes the terminal run state to stdout.
func printRunSummary(state *domain.PipelineRunState) {
	fmt.Printf("\n=== Run %s ===\n", state.RunID)
	fmt.Printf("Status: %s\n", state.Status)
	fmt.Printf("Claims collected:  %d\n", state.Metrics.ClaimsCollected)
	fmt.Printf("Bundles created:   %d (proceeded: %d)\n", state.Metrics.BundlesCreated, state.Metrics.BundlesProceeded)
	fmt.Printf("Analyses:          %d\n", state.Metrics.AnalysesCompleted)
	fmt.Printf("Challenges:        %d\n", state.Metrics.ChallengesCompleted)

	fmt.Println("\nStage durations:")
	stages := make([]string, 0, len(state.Metrics.StageDurationsMs))
	for s := range state.Metrics.StageDurationsMs {
		stages = append(stages, string(s))
	}
	sort.Strings(stages)
	for _, s := range stages {
		fmt.Printf("  %-12s %dms\n", s, state.Metrics.StageDurationsMs[domain.Stage(s)])
	}

	fmt.Printf("\nRecommendations: %d\n", len(state.Recommendations))
	for _, r := range state.Recommendations {
		fmt.Printf("  %-6s %-5s conf=%.2f alloc=%.1f%% stop=%.1f%% horizon=%s\n",
			r.Instrument, r.Action, r.Confidence,
			r.Sizing.AllocationPct*100, r.Sizing.StopLossPct*100, r.Sizing.TimeHorizon)
		if r.Rationale != "" {
			fmt.Printf("         %s\n", r.Rationale)
		}
	}

	if len(state.Errors) > 0 {
		fmt.Printf("\nErrors: %d\n", len(state.Errors))
		for _, e := range state.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// cannedInvoker replies with fixed well-formed JSON so the full pipeline can
// run without a model endpoint. Evaluator prompts are recognized by their
// red-team mandate.
type cannedInvoker struct{}

func (cannedInvoker) Invoke(_ context.Context, systemPrompt, _ string) (string, error) {
	if strings.Contains(systemPrompt, "red-team evaluator") {
		return `{"passed": true, "challenge": "thesis consistent with the observations provided", "confidence": 0.6}`, nil
	}
	return `{"conclusion": "bullish", "confidence": 0.7, "analysis": "price and volume expansion with supportive flow", "suggested_action": "buy", "risk_factors": ["crowded positioning"]}`, nil
}
