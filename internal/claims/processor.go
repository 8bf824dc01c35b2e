// Package claims groups raw observations by instrument, diffs them against
// history and scores how much new information a bundle carries.
package claims

import (
	"context"
	"fmt"
	"log"
	"sort"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/storage"
)

// Processor implements claim grouping, history diffing and the proceed rule.
type Processor struct {
	claimStore storage.ClaimStore
	weights    Weights
	thresholds domain.TriageThresholds
	tolerance  float64 // relative value deviation below which a claim is unchanged
	logger     *log.Logger
}

// Options for creating a Processor.
type Options struct {
	ClaimStore storage.ClaimStore
	Weights    *Weights // nil uses DefaultWeights
	Thresholds domain.TriageThresholds
	Tolerance  float64 // default 0.001 (0.1% relative deviation)
	Logger     *log.Logger
}

// NewProcessor creates a new claim processor.
func NewProcessor(opts Options) *Processor {
	weights := DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	tolerance := opts.Tolerance
	if tolerance == 0 {
		tolerance = 0.001
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Processor{
		claimStore: opts.ClaimStore,
		weights:    weights,
		thresholds: opts.Thresholds,
		tolerance:  tolerance,
		logger:     logger,
	}
}

// GroupClaims partitions claims by instrument. Every claim lands in exactly
// one bundle; bundles are ordered by instrument ASC for determinism.
func (p *Processor) GroupClaims(claims []*domain.Claim) []*domain.ClaimBundle {
	byInstrument := make(map[string]*domain.ClaimBundle)
	for _, c := range claims {
		if c == nil {
			continue
		}
		bundle, exists := byInstrument[c.Instrument]
		if !exists {
			bundle = &domain.ClaimBundle{Instrument: c.Instrument}
			byInstrument[c.Instrument] = bundle
		}
		bundle.Claims = append(bundle.Claims, c)
	}

	bundles := make([]*domain.ClaimBundle, 0, len(byInstrument))
	for _, b := range byInstrument {
		bundles = append(bundles, b)
	}
	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].Instrument < bundles[j].Instrument
	})

	return bundles
}

// ShouldProceed applies the pure pre-filter rule:
// significanceScore >= thresholds.MinSignificanceScore.
// The returned reason is human-readable for audit.
func (p *Processor) ShouldProceed(diff *domain.ClaimsDiff) (bool, string) {
	min := p.thresholds.MinSignificanceScore
	if diff.SignificanceScore >= min {
		return true, fmt.Sprintf("significance %.3f >= threshold %.3f (%d new, %d changed claims)",
			diff.SignificanceScore, min, len(diff.NewClaims), len(diff.ChangedClaims))
	}
	return false, fmt.Sprintf("significance %.3f below threshold %.3f", diff.SignificanceScore, min)
}

// EnrichWithHistory fetches each bundle's historical claims bounded by the
// lookback window, computes the diff and decides proceed once per bundle.
func (p *Processor) EnrichWithHistory(ctx context.Context, agentID string, bundles []*domain.ClaimBundle, nowMs int64) ([]*domain.EnrichedClaimBundle, error) {
	lookbackMs := int64(p.thresholds.LookbackHours) * 3600 * 1000
	since := nowMs - lookbackMs
	if p.thresholds.LookbackHours <= 0 || since < 0 {
		since = 0
	}

	enriched := make([]*domain.EnrichedClaimBundle, 0, len(bundles))
	for _, b := range bundles {
		historical, err := p.claimStore.GetByInstrumentSince(ctx, agentID, b.Instrument, since)
		if err != nil {
			return nil, fmt.Errorf("fetch history for %s: %w", b.Instrument, err)
		}

		diff := p.CalculateClaimsDiff(b.Claims, historical)
		proceed, reason := p.ShouldProceed(diff)

		enriched = append(enriched, &domain.EnrichedClaimBundle{
			ClaimBundle:      *b,
			HistoricalClaims: historical,
			Diff:             diff,
			ShouldProceed:    proceed,
			ProceedReason:    reason,
		})
	}

	return enriched, nil
}
