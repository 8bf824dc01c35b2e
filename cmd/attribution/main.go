// Package main provides the daily attribution batch entry point.
// Computes per-analyst solo P&L, dissent accuracy and portfolio ranks for a
// trading day, then prints the fork leaderboards.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"prediction-pipeline/internal/attribution"
	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage/migrations"
	pgstore "prediction-pipeline/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	date := flag.String("date", time.Now().UTC().Format("2006-01-02"), "Trading day (YYYY-MM-DD, UTC)")
	forkFlag := flag.String("fork", "both", "Attribution fork: user, ai or both")
	leaderboard := flag.Bool("leaderboard", true, "Print the leaderboard after computing metrics")
	flag.Parse()

	logger := log.New(os.Stdout, "[attribution] ", log.LstdFlags)

	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	forks, err := resolveForks(*forkFlag)
	if err != nil {
		logger.Fatalf("Invalid fork: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling batch...\n", sig)
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("Connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Run migrations: %v", err)
	}

	engine := attribution.NewEngine(attribution.Options{
		Analysts:   pgstore.NewAnalystStore(pool),
		Portfolios: pgstore.NewPortfolioStore(pool),
		Positions:  pgstore.NewPositionStore(pool),
		Dissents:   pgstore.NewDissentStore(pool),
		Metrics:    pgstore.NewPerformanceMetricsStore(pool),
		Logger:     logger,
	})

	for _, fork := range forks {
		rows, err := engine.CalculateAndSaveDailyMetrics(ctx, fork, *date, nil)
		if err != nil {
			logger.Fatalf("Daily metrics for fork %s: %v", fork, err)
		}
		printDailyMetrics(fork, *date, rows)

		if *leaderboard {
			entries, err := engine.GetLeaderboard(ctx, fork)
			if err != nil {
				logger.Fatalf("Leaderboard for fork %s: %v", fork, err)
			}
			printLeaderboard(fork, entries)
		}
	}
}

// resolveForks maps the fork flag to the forks to process.
func resolveForks(flag string) ([]domain.Fork, error) {
	switch flag {
	case "user":
		return []domain.Fork{domain.ForkUser}, nil
	case "ai":
		return []domain.Fork{domain.ForkAI}, nil
	case "both":
		return []domain.Fork{domain.ForkUser, domain.ForkAI}, nil
	default:
		return nil, fmt.Errorf("%q is not one of user, ai, both", flag)
	}
}

// printDailyMetrics writes the computed rows for one fork to stdout.
func printDailyMetrics(fork domain.Fork, date string, rows []*domain.AnalystPerformanceMetrics) {
	fmt.Printf("\n=== Daily metrics: fork=%s date=%s (%d analysts) ===\n", fork, date, len(rows))
	for _, m := range rows {
		accuracy := "n/a"
		if m.DissentAccuracy != nil {
			accuracy = fmt.Sprintf("%.0f%%", *m.DissentAccuracy*100)
		}
		fmt.Printf("  #%-2d %-20s solo=%10.2f contrib=%10.2f dissents=%d accuracy=%s\n",
			m.RankInPortfolio, m.AnalystID, m.SoloPnl, m.ContributionPnl, m.DissentCount, accuracy)
	}
}

// printLeaderboard writes the latest standings for one fork to stdout.
func printLeaderboard(fork domain.Fork, entries []*domain.LeaderboardEntry) {
	fmt.Printf("\n=== Leaderboard: fork=%s ===\n", fork)
	for _, e := range entries {
		fmt.Printf("  #%-2d %-24s solo=%10.2f (as of %s)\n", e.Rank, e.AnalystName, e.SoloPnl, e.Date)
	}
}
