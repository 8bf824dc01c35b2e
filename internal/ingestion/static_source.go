package ingestion

import (
	"context"

	"prediction-pipeline/internal/domain"
)

// StaticSource replays a fixed claim set. Used for fixture-driven runs and
// tests.
type StaticSource struct {
	ID     string
	Claims []*domain.Claim
	Err    error
}

func (s *StaticSource) ToolID() string { return s.ID }

func (s *StaticSource) Collect(_ context.Context) ([]*domain.Claim, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*domain.Claim, len(s.Claims))
	copy(out, s.Claims)
	return out, nil
}

// Verify interface compliance at compile time.
var _ Collector = (*StaticSource)(nil)
