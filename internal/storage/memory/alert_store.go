package memory

import (
	"context"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Alert // keyed by alert_id
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make(map[string]*domain.Alert),
	}
}

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.Alert) error {
	if a == nil || a.AlertID == "" || a.SourceID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AlertID]; exists {
		return storage.ErrDuplicateKey
	}

	alertCopy := copyAlert(a)
	s.data[a.AlertID] = alertCopy
	return nil
}

// GetActive retrieves the active alert for (source, alertType).
func (s *AlertStore) GetActive(_ context.Context, sourceID, alertType string) (*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.data {
		if a.SourceID == sourceID && a.AlertType == alertType && a.Status == domain.AlertStatusActive {
			return copyAlert(a), nil
		}
	}
	return nil, storage.ErrNotFound
}

// UpdateStatus transitions an alert's status.
func (s *AlertStore) UpdateStatus(_ context.Context, alertID string, status domain.AlertStatus, resolvedAt *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[alertID]
	if !exists {
		return storage.ErrNotFound
	}

	a.Status = status
	if resolvedAt != nil {
		ts := *resolvedAt
		a.ResolvedAt = &ts
	}
	return nil
}

func copyAlert(a *domain.Alert) *domain.Alert {
	alertCopy := *a
	if a.Details != nil {
		alertCopy.Details = make(map[string]string, len(a.Details))
		for k, v := range a.Details {
			alertCopy.Details[k] = v
		}
	}
	if a.ResolvedAt != nil {
		ts := *a.ResolvedAt
		alertCopy.ResolvedAt = &ts
	}
	return &alertCopy
}

// Verify interface compliance at compile time.
var _ storage.AlertStore = (*AlertStore)(nil)
