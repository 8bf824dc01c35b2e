package memory

import (
	"context"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// AnalystStore is an in-memory implementation of storage.AnalystStore.
type AnalystStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Analyst // keyed by analyst_id
}

// NewAnalystStore creates a new in-memory analyst store.
func NewAnalystStore() *AnalystStore {
	return &AnalystStore{
		data: make(map[string]*domain.Analyst),
	}
}

// Insert adds a new analyst. Returns ErrDuplicateKey if analyst_id exists.
func (s *AnalystStore) Insert(_ context.Context, a *domain.Analyst) error {
	if a == nil || a.AnalystID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AnalystID]; exists {
		return storage.ErrDuplicateKey
	}

	analystCopy := *a
	s.data[a.AnalystID] = &analystCopy
	return nil
}

// GetByID retrieves an analyst. Returns ErrNotFound if not exists.
func (s *AnalystStore) GetByID(_ context.Context, analystID string) (*domain.Analyst, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[analystID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	analystCopy := *a
	return &analystCopy, nil
}

// GetActive retrieves all active analysts, ordered by analyst_id ASC.
func (s *AnalystStore) GetActive(_ context.Context) ([]*domain.Analyst, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Analyst
	for _, a := range s.data {
		if a.Active {
			analystCopy := *a
			result = append(result, &analystCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AnalystID < result[j].AnalystID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AnalystStore = (*AnalystStore)(nil)
