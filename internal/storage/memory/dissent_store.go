package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// DissentStore is an in-memory implementation of storage.DissentStore.
type DissentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DissentRecord // keyed by (analyst|fork|date|instrument)
}

// NewDissentStore creates a new in-memory dissent store.
func NewDissentStore() *DissentStore {
	return &DissentStore{
		data: make(map[string]*domain.DissentRecord),
	}
}

func dissentKey(d *domain.DissentRecord) string {
	return fmt.Sprintf("%s|%s|%s|%s", d.AnalystID, d.Fork, d.Date, d.Instrument)
}

// Insert adds a dissent record. Returns ErrDuplicateKey if the key exists.
func (s *DissentStore) Insert(_ context.Context, d *domain.DissentRecord) error {
	if d == nil || d.AnalystID == "" || d.Date == "" || d.Instrument == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dissentKey(d)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	dCopy := *d
	s.data[key] = &dCopy
	return nil
}

// GetByAnalystDate retrieves an analyst's dissent records for one day.
func (s *DissentStore) GetByAnalystDate(_ context.Context, analystID string, fork domain.Fork, date string) ([]*domain.DissentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DissentRecord
	for _, d := range s.data {
		if d.AnalystID == analystID && d.Fork == fork && d.Date == date {
			dCopy := *d
			result = append(result, &dCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Instrument < result[j].Instrument
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DissentStore = (*DissentStore)(nil)
