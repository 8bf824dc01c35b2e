package clickhouse

import (
	"context"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// ClaimStore implements storage.ClaimStore using ClickHouse. Claim history
// is an append-only timeseries: high write volume, windowed reads.
type ClaimStore struct {
	conn *Conn
}

// NewClaimStore creates a new ClaimStore.
func NewClaimStore(conn *Conn) *ClaimStore {
	return &ClaimStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClaimStore = (*ClaimStore)(nil)

// InsertBatch appends a run's claims for an agent. Append-only.
func (s *ClaimStore) InsertBatch(ctx context.Context, agentID, runID string, claims []*domain.Claim) error {
	if agentID == "" || runID == "" {
		return storage.ErrInvalidInput
	}
	if len(claims) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO claim_history (
			agent_id, run_id, claim_type, instrument, value, detail, confidence, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range claims {
		if c == nil || !c.Valid() {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			agentID, runID, c.Type, c.Instrument,
			c.Value, c.Detail, c.Confidence, uint64(c.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByInstrumentSince retrieves an agent's historical claims for an
// instrument with timestamp >= since, ordered by timestamp ASC.
func (s *ClaimStore) GetByInstrumentSince(ctx context.Context, agentID, instrument string, since int64) ([]*domain.Claim, error) {
	query := `
		SELECT claim_type, instrument, value, detail, confidence, observed_at
		FROM claim_history
		WHERE agent_id = ? AND instrument = ? AND observed_at >= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, agentID, instrument, uint64(since))
	if err != nil {
		return nil, fmt.Errorf("query claims by instrument: %w", err)
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		var c domain.Claim
		var observedAt uint64

		err := rows.Scan(
			&c.Type, &c.Instrument, &c.Value, &c.Detail, &c.Confidence, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan claim row: %w", err)
		}

		c.Timestamp = int64(observedAt)
		claims = append(claims, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim rows: %w", err)
	}

	return claims, nil
}
