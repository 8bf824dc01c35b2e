package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"prediction-pipeline/internal/domain"
)

func claim(instrument string, value float64) *domain.Claim {
	return &domain.Claim{
		Type:       domain.ClaimTypePrice,
		Instrument: instrument,
		Value:      value,
		Confidence: 0.9,
		Timestamp:  1700000000000,
	}
}

func TestPollTools_AllSettled(t *testing.T) {
	collectors := []Collector{
		&StaticSource{ID: "prices", Claims: []*domain.Claim{claim("AAPL", 190), claim("MSFT", 410)}},
		&StaticSource{ID: "broken", Err: errors.New("upstream 503")},
		&StaticSource{ID: "news", Claims: []*domain.Claim{claim("AAPL", 0.4)}},
	}

	sources, errs := PollTools(context.Background(), collectors, 1700000001000, nil)

	if len(sources) != 2 {
		t.Fatalf("Expected 2 surviving sources, got %d", len(sources))
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "broken") {
		t.Errorf("Failed tool must be recorded by ID, got %v", errs)
	}
	for _, s := range sources {
		if s.FetchedAt != 1700000001000 {
			t.Errorf("FetchedAt = %d, want poll timestamp", s.FetchedAt)
		}
	}
}

type panickingCollector struct{}

func (p *panickingCollector) ToolID() string { return "crashy" }
func (p *panickingCollector) Collect(context.Context) ([]*domain.Claim, error) {
	panic("nil map write")
}

func TestPollTools_PanicSettlesAsToolFailure(t *testing.T) {
	collectors := []Collector{
		&StaticSource{ID: "prices", Claims: []*domain.Claim{claim("AAPL", 190)}},
		&panickingCollector{},
	}

	sources, errs := PollTools(context.Background(), collectors, 1700000001000, nil)

	if len(sources) != 1 || sources[0].ToolID != "prices" {
		t.Fatalf("Healthy tool must survive a sibling panic, got %d sources", len(sources))
	}
	if len(errs) != 1 || !strings.Contains(errs[0], "crashy") || !strings.Contains(errs[0], "panic") {
		t.Errorf("Panicking tool must settle as its own failure, got %v", errs)
	}
}

func TestPollTools_DropsInvalidClaims(t *testing.T) {
	collectors := []Collector{
		&StaticSource{ID: "mixed", Claims: []*domain.Claim{
			claim("AAPL", 190),
			{Type: domain.ClaimTypePrice, Value: 1}, // no instrument
		}},
	}

	sources, errs := PollTools(context.Background(), collectors, 1700000001000, nil)
	if len(errs) != 0 {
		t.Fatalf("Invalid claims are dropped, not errors: %v", errs)
	}
	if len(sources[0].Claims) != 1 {
		t.Errorf("Expected 1 valid claim, got %d", len(sources[0].Claims))
	}
}

func TestBuildDatapoint_UnionAndInstruments(t *testing.T) {
	sources := []*domain.SourceResult{
		{ToolID: "a", Claims: []*domain.Claim{claim("MSFT", 410), claim("AAPL", 190)}},
		{ToolID: "b", Claims: []*domain.Claim{claim("AAPL", 0.4)}},
	}

	dp := BuildDatapoint("agent-1", "run-1", sources, 1700000001000)

	if len(dp.AllClaims) != 3 {
		t.Errorf("AllClaims must be the union, got %d", len(dp.AllClaims))
	}
	if len(dp.Instruments) != 2 || dp.Instruments[0] != "AAPL" || dp.Instruments[1] != "MSFT" {
		t.Errorf("Instruments must be the sorted set, got %v", dp.Instruments)
	}
	if dp.DatapointID == "" {
		t.Error("DatapointID must be derived")
	}

	again := BuildDatapoint("agent-1", "run-1", sources, 1700000001000)
	if again.DatapointID != dp.DatapointID {
		t.Error("DatapointID must be deterministic for identical inputs")
	}
}
