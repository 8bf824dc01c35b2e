package memory

import (
	"context"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// DatapointStore is an in-memory implementation of storage.DatapointStore.
type DatapointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Datapoint // keyed by datapoint_id
}

// NewDatapointStore creates a new in-memory datapoint store.
func NewDatapointStore() *DatapointStore {
	return &DatapointStore{
		data: make(map[string]*domain.Datapoint),
	}
}

// Insert adds a new datapoint. Returns ErrDuplicateKey if the ID exists.
func (s *DatapointStore) Insert(_ context.Context, d *domain.Datapoint) error {
	if d == nil || d.DatapointID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.DatapointID]; exists {
		return storage.ErrDuplicateKey
	}

	dpCopy := *d
	s.data[d.DatapointID] = &dpCopy
	return nil
}

// GetByID retrieves a datapoint by ID. Returns ErrNotFound if not exists.
func (s *DatapointStore) GetByID(_ context.Context, datapointID string) (*domain.Datapoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[datapointID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	dpCopy := *d
	return &dpCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.DatapointStore = (*DatapointStore)(nil)
