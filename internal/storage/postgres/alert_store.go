package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// AlertStore implements storage.AlertStore using PostgreSQL. A partial
// unique index on (source_id, alert_type) WHERE status = 'active' enforces
// the single-active-alert invariant at the database level.
type AlertStore struct {
	pool *Pool
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(pool *Pool) *AlertStore {
	return &AlertStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds a new alert. Returns ErrDuplicateKey if alert_id exists or a
// second active alert would violate the (source, type) uniqueness.
func (s *AlertStore) Insert(ctx context.Context, a *domain.Alert) error {
	if a == nil || a.AlertID == "" || a.SourceID == "" {
		return storage.ErrInvalidInput
	}

	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	query := `
		INSERT INTO alerts (
			alert_id, alert_type, severity, status, source_id,
			title, message, details, created_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.pool.Exec(ctx, query,
		a.AlertID,
		a.AlertType,
		a.Severity,
		string(a.Status),
		a.SourceID,
		a.Title,
		a.Message,
		details,
		a.CreatedAt,
		a.ResolvedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetActive retrieves the active alert for (source, alertType).
func (s *AlertStore) GetActive(ctx context.Context, sourceID, alertType string) (*domain.Alert, error) {
	query := `
		SELECT alert_id, alert_type, severity, status, source_id,
		       title, message, details, created_at, resolved_at
		FROM alerts
		WHERE source_id = $1 AND alert_type = $2 AND status = 'active'
	`

	var a domain.Alert
	var status string
	var details []byte

	err := s.pool.QueryRow(ctx, query, sourceID, alertType).Scan(
		&a.AlertID,
		&a.AlertType,
		&a.Severity,
		&status,
		&a.SourceID,
		&a.Title,
		&a.Message,
		&details,
		&a.CreatedAt,
		&a.ResolvedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active alert: %w", err)
	}

	a.Status = domain.AlertStatus(status)
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fmt.Errorf("unmarshal details: %w", err)
		}
	}
	return &a, nil
}

// UpdateStatus transitions an alert's status.
func (s *AlertStore) UpdateStatus(ctx context.Context, alertID string, status domain.AlertStatus, resolvedAt *int64) error {
	query := `
		UPDATE alerts
		SET status = $2, resolved_at = COALESCE($3, resolved_at)
		WHERE alert_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, alertID, string(status), resolvedAt)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
