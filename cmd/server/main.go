// Package main provides the long-running prediction service:
// - Scheduled pipeline runs, admission-gated by backpressure limits
// - Source health alerting from per-run collection outcomes
// - Prometheus metrics and status endpoints
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prediction-pipeline/internal/alerting"
	"prediction-pipeline/internal/analysis"
	"prediction-pipeline/internal/backpressure"
	"prediction-pipeline/internal/claims"
	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/ingestion"
	"prediction-pipeline/internal/observability"
	"prediction-pipeline/internal/pipeline"
	"prediction-pipeline/internal/registry"
	"prediction-pipeline/internal/storage"
	chstore "prediction-pipeline/internal/storage/clickhouse"
	"prediction-pipeline/internal/storage/memory"
	"prediction-pipeline/internal/storage/migrations"
	pgstore "prediction-pipeline/internal/storage/postgres"
	"prediction-pipeline/internal/triage"
)

// Server holds all components of the prediction service.
type Server struct {
	agentID     string
	assetClass  string
	riskProfile string
	instruments []string
	runInterval time.Duration

	orchestrator *pipeline.Orchestrator
	collectors   []ingestion.Collector
	gate         *backpressure.Gate
	alerts       *alerting.Manager
	logger       *log.Logger

	mu          sync.Mutex
	started     time.Time
	lastRun     time.Time
	lastStatus  domain.RunStatus
	runsTotal   int
	runsSkipped int
	running     bool
}

// allStores holds every storage implementation the service uses.
type allStores struct {
	datapoints      storage.DatapointStore
	claims          storage.ClaimStore
	runs            storage.PipelineRunStore
	recommendations storage.RecommendationStore
	alerts          storage.AlertStore
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	agentID := flag.String("agent-id", "agent-1", "Agent identifier")
	assetClass := flag.String("asset-class", "equities", "Asset class slug (equities, crypto)")
	profile := flag.String("profile", "moderate", "Risk profile name")
	wsURL := flag.String("ws-url", os.Getenv("MARKET_WS_URL"), "Market tick websocket URL")
	instruments := flag.String("instruments", "AAPL,MSFT,NVDA", "Comma-separated instruments to subscribe")
	runInterval := flag.Duration("run-interval", 15*time.Minute, "Pipeline run interval")
	alertThreshold := flag.Int("alert-threshold", 3, "Consecutive source failures before alerting")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *wsURL == "" {
		logger.Fatal("--ws-url is required")
	}

	class, err := registry.Lookup(*assetClass)
	if err != nil {
		logger.Fatalf("Unknown asset class: %v", err)
	}
	if _, err := class.Profile(*profile); err != nil {
		logger.Fatalf("Unknown risk profile: %v", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Fatal("OPENAI_API_KEY is required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores (migrations run as part of connecting)
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	instrumentList := splitList(*instruments)
	if len(instrumentList) == 0 {
		logger.Fatal("--instruments must name at least one instrument")
	}
	collectors := createCollectors(*wsURL, instrumentList)

	invoker := analysis.NewOpenAIInvoker(analysis.OpenAIOptions{
		APIKey:  apiKey,
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	})

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Collectors: collectors,
		Processor: claims.NewProcessor(claims.Options{
			ClaimStore: stores.claims,
			Thresholds: class.Thresholds,
			Logger:     logger,
		}),
		Triage:      triage.NewEngine(triage.Options{Teams: class.Teams}),
		Specialists: analysis.NewSpecialistPool(invoker, class.Specialists, logger),
		Evaluators:  analysis.NewEvaluatorPool(invoker, class.Evaluators, logger),
		Profiles:    class.Profiles,
		Stores: pipeline.Stores{
			Datapoints:      stores.datapoints,
			Claims:          stores.claims,
			Runs:            stores.runs,
			Recommendations: stores.recommendations,
		},
		Logger: logger,
	})

	alerts := alerting.NewManager(alerting.Options{
		Store:     stores.alerts,
		Sink:      observability.AlertMetricsSink{},
		Threshold: *alertThreshold,
		Logger:    logger,
	})

	server := &Server{
		agentID:      *agentID,
		assetClass:   class.Slug,
		riskProfile:  *profile,
		instruments:  instrumentList,
		runInterval:  *runInterval,
		orchestrator: orch,
		collectors:   collectors,
		gate:         backpressure.NewGate(backpressure.DefaultConfig()),
		alerts:       alerts,
		logger:       logger,
		started:      time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(*metricsAddr)

	// Run the scheduler
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores and runs migrations.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			datapoints:      memory.NewDatapointStore(),
			claims:          memory.NewClaimStore(),
			runs:            memory.NewPipelineRunStore(),
			recommendations: memory.NewRecommendationStore(),
			alerts:          memory.NewAlertStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (run summaries, recommendations, alerts)
		datapoints:      pgstore.NewDatapointStore(pool),
		runs:            pgstore.NewPipelineRunStore(pool),
		recommendations: pgstore.NewRecommendationStore(pool),
		alerts:          pgstore.NewAlertStore(pool),

		// ClickHouse store (claim history)
		claims: chstore.NewClaimStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// createCollectors builds the collection tools for the configured feed.
func createCollectors(wsURL string, instruments []string) []ingestion.Collector {
	return []ingestion.Collector{
		ingestion.NewWSMarketSource(ingestion.WSMarketSourceOptions{
			ToolID:      "market-ws",
			URL:         wsURL,
			Instruments: instruments,
		}),
	}
}

// splitList splits a comma-separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Run executes pipeline runs on schedule until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting scheduler (interval: %v)...", s.runInterval)

	// Run immediately on start
	s.runOnce(ctx)

	ticker := time.NewTicker(s.runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes one admission-gated pipeline run.
func (s *Server) runOnce(ctx context.Context) {
	adm := s.gate.CanStart(s.agentID)
	s.exportGateMetrics()
	if !adm.Allowed {
		s.mu.Lock()
		s.runsSkipped++
		s.mu.Unlock()
		observability.RecordRejection(adm.Reason)
		s.logger.Printf("Run rejected: %s (retry after %v)", adm.Reason, adm.RetryAfter)
		return
	}

	// Admission reserved the concurrency slot; release it when done.
	defer func() {
		s.gate.RecordComplete(s.agentID)
		s.exportGateMetrics()
	}()

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	start := time.Now()
	state := s.orchestrator.Execute(ctx, pipeline.RunRequest{
		AgentID:     s.agentID,
		AgentSlug:   s.assetClass,
		Instruments: s.instruments,
		RiskProfile: s.riskProfile,
	})

	observability.ObserveRunState(state)
	s.recordSourceHealth(ctx, state)

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now()
	s.lastStatus = state.Status
	s.runsTotal++
	s.mu.Unlock()

	s.logger.Printf("Run %s %s in %v: %d claims, %d recommendations, %d errors",
		state.RunID, state.Status, time.Since(start),
		state.Metrics.ClaimsCollected, len(state.Recommendations), len(state.Errors))
}

// recordSourceHealth feeds per-tool collection outcomes into the alert
// manager. A tool that contributed to the run's datapoint succeeded;
// everything else failed this pass.
func (s *Server) recordSourceHealth(ctx context.Context, state *domain.PipelineRunState) {
	succeeded := make(map[string]bool)
	if state.Datapoint != nil {
		for _, src := range state.Datapoint.Sources {
			succeeded[src.ToolID] = true
		}
	}

	for _, c := range s.collectors {
		toolID := c.ToolID()
		var err error
		if succeeded[toolID] {
			err = s.alerts.RecordSuccess(ctx, toolID)
		} else {
			err = s.alerts.RecordFailure(ctx, toolID, failureCause(state, toolID))
		}
		if err != nil {
			s.logger.Printf("Alert tracking for %s: %v", toolID, err)
		}
	}
}

// failureCause finds the run error mentioning the tool, if any.
func failureCause(state *domain.PipelineRunState, toolID string) string {
	for _, e := range state.Errors {
		if strings.Contains(e, toolID) {
			return e
		}
	}
	return "collection produced no claims"
}

// exportGateMetrics publishes the gate's counters.
func (s *Server) exportGateMetrics() {
	snap := s.gate.CurrentSnapshot()
	observability.UpdateBackpressure(snap.Tokens, snap.InFlight, snap.QueueDepth)
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	AgentID         string    `json:"agent_id"`
	AssetClass      string    `json:"asset_class"`
	RiskProfile     string    `json:"risk_profile"`
	LastRun         time.Time `json:"last_run,omitempty"`
	LastRunStatus   string    `json:"last_run_status,omitempty"`
	RunsTotal       int       `json:"runs_total"`
	RunsSkipped     int       `json:"runs_skipped"`
	RunInProgress   bool      `json:"run_in_progress"`
	UnderPressure   bool      `json:"under_backpressure"`
	AvailableTokens float64   `json:"available_tokens"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.gate.CurrentSnapshot()

	s.mu.Lock()
	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		AgentID:         s.agentID,
		AssetClass:      s.assetClass,
		RiskProfile:     s.riskProfile,
		LastRun:         s.lastRun,
		LastRunStatus:   string(s.lastStatus),
		RunsTotal:       s.runsTotal,
		RunsSkipped:     s.runsSkipped,
		RunInProgress:   s.running,
		UnderPressure:   s.gate.UnderBackpressure(),
		AvailableTokens: snap.Tokens,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
