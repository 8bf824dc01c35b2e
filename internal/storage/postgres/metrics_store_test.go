package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"prediction-pipeline/internal/domain"
)

func TestPerformanceMetricsStore_UpsertOverwrites(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceMetricsStore(pool)
	ctx := context.Background()

	row := &domain.AnalystPerformanceMetrics{
		AnalystID:       "alpha",
		Fork:            domain.ForkAI,
		Date:            "2024-03-15",
		SoloPnl:         100,
		DissentCount:    1,
		DissentAccuracy: ptr(1.0),
		RankInPortfolio: 2,
		TotalAnalysts:   2,
	}
	require.NoError(t, store.Upsert(ctx, row))

	// Recomputation replaces the row in place.
	row.SoloPnl = 250
	row.RankInPortfolio = 1
	row.DissentAccuracy = nil
	require.NoError(t, store.Upsert(ctx, row))

	got, err := store.GetByDate(ctx, domain.ForkAI, "2024-03-15")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 250.0, got[0].SoloPnl)
	require.Equal(t, 1, got[0].RankInPortfolio)
	require.Nil(t, got[0].DissentAccuracy)
}

func TestPerformanceMetricsStore_LatestPerAnalyst(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPerformanceMetricsStore(pool)
	ctx := context.Background()

	insert := func(analyst, date string, rank int, pnl float64) {
		require.NoError(t, store.Upsert(ctx, &domain.AnalystPerformanceMetrics{
			AnalystID: analyst, Fork: domain.ForkAI, Date: date,
			SoloPnl: pnl, RankInPortfolio: rank, TotalAnalysts: 2,
		}))
	}
	insert("alpha", "2024-03-14", 1, 500)
	insert("alpha", "2024-03-15", 2, 100)
	insert("bravo", "2024-03-15", 1, 300)

	got, err := store.GetLatestPerAnalyst(ctx, domain.ForkAI)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Each analyst's newest row, ordered by its stored rank.
	require.Equal(t, "bravo", got[0].AnalystID)
	require.Equal(t, "2024-03-15", got[0].Date)
	require.Equal(t, "alpha", got[1].AnalystID)
	require.Equal(t, 100.0, got[1].SoloPnl)

	// Fork isolation.
	other, err := store.GetLatestPerAnalyst(ctx, domain.ForkUser)
	require.NoError(t, err)
	require.Empty(t, other)
}
