package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PerformanceMetricsStore is an in-memory implementation of
// storage.PerformanceMetricsStore.
type PerformanceMetricsStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AnalystPerformanceMetrics // keyed by (analyst|fork|date)
}

// NewPerformanceMetricsStore creates a new in-memory metrics store.
func NewPerformanceMetricsStore() *PerformanceMetricsStore {
	return &PerformanceMetricsStore{
		data: make(map[string]*domain.AnalystPerformanceMetrics),
	}
}

func metricsKey(analystID string, fork domain.Fork, date string) string {
	return fmt.Sprintf("%s|%s|%s", analystID, fork, date)
}

// Upsert inserts or overwrites the row for (analyst, fork, date).
func (s *PerformanceMetricsStore) Upsert(_ context.Context, m *domain.AnalystPerformanceMetrics) error {
	if m == nil || m.AnalystID == "" || m.Date == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[metricsKey(m.AnalystID, m.Fork, m.Date)] = copyMetrics(m)
	return nil
}

// GetByDate retrieves all rows for (fork, date), ordered by rank ASC.
func (s *PerformanceMetricsStore) GetByDate(_ context.Context, fork domain.Fork, date string) ([]*domain.AnalystPerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AnalystPerformanceMetrics
	for _, m := range s.data {
		if m.Fork == fork && m.Date == date {
			result = append(result, copyMetrics(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RankInPortfolio < result[j].RankInPortfolio
	})

	return result, nil
}

// GetLatestPerAnalyst retrieves each analyst's most recent row for a fork,
// ordered by stored rank ASC.
func (s *PerformanceMetricsStore) GetLatestPerAnalyst(_ context.Context, fork domain.Fork) ([]*domain.AnalystPerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*domain.AnalystPerformanceMetrics)
	for _, m := range s.data {
		if m.Fork != fork {
			continue
		}
		cur, exists := latest[m.AnalystID]
		if !exists || m.Date > cur.Date {
			latest[m.AnalystID] = m
		}
	}

	var result []*domain.AnalystPerformanceMetrics
	for _, m := range latest {
		result = append(result, copyMetrics(m))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RankInPortfolio != result[j].RankInPortfolio {
			return result[i].RankInPortfolio < result[j].RankInPortfolio
		}
		return result[i].AnalystID < result[j].AnalystID
	})

	return result, nil
}

func copyMetrics(m *domain.AnalystPerformanceMetrics) *domain.AnalystPerformanceMetrics {
	mCopy := *m
	if m.DissentAccuracy != nil {
		v := *m.DissentAccuracy
		mCopy.DissentAccuracy = &v
	}
	return &mCopy
}

// Verify interface compliance at compile time.
var _ storage.PerformanceMetricsStore = (*PerformanceMetricsStore)(nil)
