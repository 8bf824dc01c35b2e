package memory

import (
	"context"
	"fmt"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.AnalystPortfolio // keyed by portfolio_id
	byFork map[string]string                   // (analyst_id|fork) -> portfolio_id
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		data:   make(map[string]*domain.AnalystPortfolio),
		byFork: make(map[string]string),
	}
}

func forkKey(analystID string, fork domain.Fork) string {
	return fmt.Sprintf("%s|%s", analystID, fork)
}

// Insert adds a new portfolio. Returns ErrDuplicateKey if (analyst, fork) exists.
func (s *PortfolioStore) Insert(_ context.Context, p *domain.AnalystPortfolio) error {
	if p == nil || p.PortfolioID == "" || p.AnalystID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := forkKey(p.AnalystID, p.Fork)
	if _, exists := s.byFork[key]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.data[p.PortfolioID]; exists {
		return storage.ErrDuplicateKey
	}

	pCopy := *p
	s.data[p.PortfolioID] = &pCopy
	s.byFork[key] = p.PortfolioID
	return nil
}

// GetByAnalystFork retrieves the portfolio for (analyst, fork).
func (s *PortfolioStore) GetByAnalystFork(_ context.Context, analystID string, fork domain.Fork) (*domain.AnalystPortfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byFork[forkKey(analystID, fork)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	pCopy := *s.data[id]
	return &pCopy, nil
}

// Update overwrites portfolio balances and counters.
func (s *PortfolioStore) Update(_ context.Context, p *domain.AnalystPortfolio) error {
	if p == nil || p.PortfolioID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PortfolioID]; !exists {
		return storage.ErrNotFound
	}

	pCopy := *p
	s.data[p.PortfolioID] = &pCopy
	return nil
}

// Verify interface compliance at compile time.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)
