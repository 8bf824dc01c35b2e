package memory

import (
	"context"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// ClaimStore is an in-memory implementation of storage.ClaimStore.
type ClaimStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Claim // keyed by agent_id
}

// NewClaimStore creates a new in-memory claim store.
func NewClaimStore() *ClaimStore {
	return &ClaimStore{
		data: make(map[string][]*domain.Claim),
	}
}

// InsertBatch appends a run's claims for an agent.
func (s *ClaimStore) InsertBatch(_ context.Context, agentID, runID string, claims []*domain.Claim) error {
	if agentID == "" || runID == "" {
		return storage.ErrInvalidInput
	}
	if len(claims) == 0 {
		return nil
	}

	for _, c := range claims {
		if c == nil || !c.Valid() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range claims {
		claimCopy := *c
		s.data[agentID] = append(s.data[agentID], &claimCopy)
	}
	return nil
}

// GetByInstrumentSince retrieves historical claims for an instrument.
func (s *ClaimStore) GetByInstrumentSince(_ context.Context, agentID, instrument string, since int64) ([]*domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Claim
	for _, c := range s.data[agentID] {
		if c.Instrument == instrument && c.Timestamp >= since {
			claimCopy := *c
			result = append(result, &claimCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ClaimStore = (*ClaimStore)(nil)
