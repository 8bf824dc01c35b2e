package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// DatapointStore implements storage.DatapointStore using PostgreSQL.
// Source results and claims are stored as JSONB: datapoints are written
// once per run and read back whole.
type DatapointStore struct {
	pool *Pool
}

// NewDatapointStore creates a new DatapointStore.
func NewDatapointStore(pool *Pool) *DatapointStore {
	return &DatapointStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DatapointStore = (*DatapointStore)(nil)

// Insert adds a new datapoint. Returns ErrDuplicateKey if the ID exists.
func (s *DatapointStore) Insert(ctx context.Context, d *domain.Datapoint) error {
	if d == nil || d.DatapointID == "" {
		return storage.ErrInvalidInput
	}

	sources, err := json.Marshal(d.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	metadata, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	// pgx encodes a nil slice as SQL NULL; the column is NOT NULL.
	instruments := d.Instruments
	if instruments == nil {
		instruments = []string{}
	}

	query := `
		INSERT INTO datapoints (
			datapoint_id, agent_id, collected_at, sources, instruments, metadata
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.pool.Exec(ctx, query,
		d.DatapointID,
		d.AgentID,
		d.Timestamp,
		sources,
		instruments,
		metadata,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert datapoint: %w", err)
	}
	return nil
}

// GetByID retrieves a datapoint by ID. Returns ErrNotFound if not exists.
func (s *DatapointStore) GetByID(ctx context.Context, datapointID string) (*domain.Datapoint, error) {
	query := `
		SELECT datapoint_id, agent_id, collected_at, sources, instruments, metadata
		FROM datapoints
		WHERE datapoint_id = $1
	`

	var d domain.Datapoint
	var sources, metadata []byte

	err := s.pool.QueryRow(ctx, query, datapointID).Scan(
		&d.DatapointID,
		&d.AgentID,
		&d.Timestamp,
		&sources,
		&d.Instruments,
		&metadata,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get datapoint by id: %w", err)
	}

	if err := json.Unmarshal(sources, &d.Sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	// AllClaims is the union of the per-source claims.
	for _, src := range d.Sources {
		d.AllClaims = append(d.AllClaims, src.Claims...)
	}
	return &d, nil
}
