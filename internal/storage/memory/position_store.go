package memory

import (
	"context"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AnalystPosition // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.AnalystPosition),
	}
}

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.AnalystPosition) error {
	if p == nil || p.PositionID == "" || p.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[p.PositionID] = copyPosition(p)
	return nil
}

// Update overwrites a position (used to close it).
func (s *PositionStore) Update(_ context.Context, p *domain.AnalystPosition) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; !exists {
		return storage.ErrNotFound
	}

	s.data[p.PositionID] = copyPosition(p)
	return nil
}

// GetClosedByPortfolio retrieves closed positions within [from, to].
// Zero bounds are unbounded.
func (s *PositionStore) GetClosedByPortfolio(_ context.Context, portfolioID string, from, to int64) ([]*domain.AnalystPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AnalystPosition
	for _, p := range s.data {
		if p.PortfolioID != portfolioID || p.Status != domain.PositionStatusClosed {
			continue
		}
		if p.ClosedAt == nil {
			continue
		}
		if from > 0 && *p.ClosedAt < from {
			continue
		}
		if to > 0 && *p.ClosedAt > to {
			continue
		}
		result = append(result, copyPosition(p))
	}

	sort.Slice(result, func(i, j int) bool {
		if *result[i].ClosedAt != *result[j].ClosedAt {
			return *result[i].ClosedAt < *result[j].ClosedAt
		}
		return result[i].PositionID < result[j].PositionID
	})

	return result, nil
}

func copyPosition(p *domain.AnalystPosition) *domain.AnalystPosition {
	pCopy := *p
	if p.ExitPrice != nil {
		v := *p.ExitPrice
		pCopy.ExitPrice = &v
	}
	if p.ClosedAt != nil {
		v := *p.ClosedAt
		pCopy.ClosedAt = &v
	}
	return &pCopy
}

// Verify interface compliance at compile time.
var _ storage.PositionStore = (*PositionStore)(nil)
