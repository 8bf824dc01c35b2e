package memory

import (
	"context"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// RecommendationStore is an in-memory implementation of storage.RecommendationStore.
type RecommendationStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Recommendation // keyed by run_id
	seen map[string]struct{}                 // recommendation_id dedup
}

// NewRecommendationStore creates a new in-memory recommendation store.
func NewRecommendationStore() *RecommendationStore {
	return &RecommendationStore{
		data: make(map[string][]*domain.Recommendation),
		seen: make(map[string]struct{}),
	}
}

// InsertBulk adds a run's recommendations atomically.
func (s *RecommendationStore) InsertBulk(_ context.Context, runID string, recs []*domain.Recommendation) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if r == nil || r.RecommendationID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.seen[r.RecommendationID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for _, r := range recs {
		recCopy := *r
		s.data[runID] = append(s.data[runID], &recCopy)
		s.seen[r.RecommendationID] = struct{}{}
	}
	return nil
}

// GetByRunID retrieves all recommendations for a run, ordered by instrument ASC.
func (s *RecommendationStore) GetByRunID(_ context.Context, runID string) ([]*domain.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Recommendation
	for _, r := range s.data[runID] {
		recCopy := *r
		result = append(result, &recCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RecommendationStore = (*RecommendationStore)(nil)
