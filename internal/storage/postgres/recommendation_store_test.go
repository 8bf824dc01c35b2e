package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

func TestRecommendationStore_BulkRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommendationStore(pool)
	ctx := context.Background()

	recs := []*domain.Recommendation{
		{
			RecommendationID: "rec-2",
			Instrument:       "MSFT",
			Action:           domain.ActionBuy,
			Confidence:       0.7,
			Rationale:        "2 specialists back buy",
			Evidence:         []string{"momentum", "valuation"},
			Sizing:           domain.PositionSizing{AllocationPct: 0.05, StopLossPct: 0.08, TimeHorizon: "swing"},
		},
		{
			RecommendationID: "rec-1",
			Instrument:       "AAPL",
			Action:           domain.ActionHold,
			Confidence:       0.4,
			Sizing:           domain.PositionSizing{TimeHorizon: "swing"},
		},
	}
	require.NoError(t, store.InsertBulk(ctx, "run-1", recs))

	got, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by instrument ASC.
	require.Equal(t, "AAPL", got[0].Instrument)
	require.Equal(t, "MSFT", got[1].Instrument)
	require.Equal(t, []string{"momentum", "valuation"}, got[1].Evidence)
	require.Equal(t, 0.05, got[1].Sizing.AllocationPct)
}

func TestRecommendationStore_BulkIsAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommendationStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "run-1", []*domain.Recommendation{
		{RecommendationID: "rec-1", Instrument: "AAPL", Action: domain.ActionBuy},
	}))

	// Second batch collides on rec-1: nothing from it may land.
	err := store.InsertBulk(ctx, "run-2", []*domain.Recommendation{
		{RecommendationID: "rec-9", Instrument: "NVDA", Action: domain.ActionBuy},
		{RecommendationID: "rec-1", Instrument: "AAPL", Action: domain.ActionSell},
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRecommendationStore_EmptyBatch(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRecommendationStore(pool)
	require.NoError(t, store.InsertBulk(context.Background(), "run-1", nil))
}
