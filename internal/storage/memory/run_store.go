package memory

import (
	"context"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// PipelineRunStore is an in-memory implementation of storage.PipelineRunStore.
type PipelineRunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PipelineRunRecord // keyed by run_id
}

// NewPipelineRunStore creates a new in-memory run store.
func NewPipelineRunStore() *PipelineRunStore {
	return &PipelineRunStore{
		data: make(map[string]*domain.PipelineRunRecord),
	}
}

// Insert adds a run record. Returns ErrDuplicateKey if run_id exists.
func (s *PipelineRunStore) Insert(_ context.Context, r *domain.PipelineRunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *r
	s.data[r.RunID] = &recCopy
	return nil
}

// GetByID retrieves a run record. Returns ErrNotFound if not exists.
func (s *PipelineRunStore) GetByID(_ context.Context, runID string) (*domain.PipelineRunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *r
	return &recCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.PipelineRunStore = (*PipelineRunStore)(nil)
