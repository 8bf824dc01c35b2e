package claims

import (
	"math"

	"prediction-pipeline/internal/domain"
)

// Weights for the significance score factors. The combined score is clamped
// to [0,1] regardless, so the weights are not required to sum to 1.
type Weights struct {
	PriceChange    float64
	VolumeChange   float64
	SentimentShift float64
	NewClaimCount  float64
}

// DefaultWeights returns the default factor weights (sum to 1.0).
func DefaultWeights() Weights {
	return Weights{
		PriceChange:    0.35,
		VolumeChange:   0.25,
		SentimentShift: 0.20,
		NewClaimCount:  0.20,
	}
}

// newClaimSaturation is the new-claim count at which that factor maxes out.
const newClaimSaturation = 5.0

// coldStartSignificance is the score for a bundle with no history. With
// nothing to diff against, the change factors are near zero and would block
// every first observation; the midpoint score lets moderate thresholds admit
// cold starts.
const coldStartSignificance = 0.5

// claimKey identifies a claim for diffing purposes.
type claimKey struct {
	claimType  string
	instrument string
}

// CalculateClaimsDiff classifies current claims against historical ones by
// (type, instrument) identity. "Changed" requires a relative value deviation
// beyond the processor's tolerance. The significance score is a weighted
// combination of normalized factors, clamped to [0,1]; with no history it is
// the cold-start default.
func (p *Processor) CalculateClaimsDiff(current, historical []*domain.Claim) *domain.ClaimsDiff {
	// Latest historical claim per key
	latest := make(map[claimKey]*domain.Claim)
	for _, h := range historical {
		k := claimKey{h.Type, h.Instrument}
		if prev, exists := latest[k]; !exists || h.Timestamp > prev.Timestamp {
			latest[k] = h
		}
	}

	diff := &domain.ClaimsDiff{}
	seen := make(map[claimKey]struct{})

	for _, c := range current {
		k := claimKey{c.Type, c.Instrument}
		seen[k] = struct{}{}

		prev, exists := latest[k]
		if !exists {
			diff.NewClaims = append(diff.NewClaims, c)
			continue
		}
		if relativeDeviation(prev.Value, c.Value) > p.tolerance {
			diff.ChangedClaims = append(diff.ChangedClaims, c)
		}
	}

	for k, h := range latest {
		if _, exists := seen[k]; !exists {
			diff.RemovedClaims = append(diff.RemovedClaims, h)
		}
	}

	if len(latest) == 0 {
		diff.SignificanceScore = coldStartSignificance
	} else {
		diff.SignificanceScore = p.significance(diff, latest)
	}
	return diff
}

// significance combines the normalized change factors.
func (p *Processor) significance(diff *domain.ClaimsDiff, latest map[claimKey]*domain.Claim) float64 {
	var priceFactor, volumeFactor, sentimentFactor float64

	for _, c := range diff.ChangedClaims {
		prev := latest[claimKey{c.Type, c.Instrument}]
		if prev == nil {
			continue
		}
		switch c.Type {
		case domain.ClaimTypePrice:
			priceFactor = math.Max(priceFactor, normalizeDeviation(relativeDeviation(prev.Value, c.Value), 0.10))
		case domain.ClaimTypeVolume:
			volumeFactor = math.Max(volumeFactor, normalizeDeviation(relativeDeviation(prev.Value, c.Value), 0.50))
		case domain.ClaimTypeSentiment:
			// Sentiment values live in [-1,1]; a full swing is 2.0
			sentimentFactor = math.Max(sentimentFactor, clamp01(math.Abs(c.Value-prev.Value)/2))
		}
	}

	newFactor := clamp01(float64(len(diff.NewClaims)) / newClaimSaturation)

	score := p.weights.PriceChange*priceFactor +
		p.weights.VolumeChange*volumeFactor +
		p.weights.SentimentShift*sentimentFactor +
		p.weights.NewClaimCount*newFactor

	return clamp01(score)
}

// relativeDeviation returns |b-a| relative to |a|, falling back to the
// absolute difference when a is zero.
func relativeDeviation(a, b float64) float64 {
	if a == 0 {
		return math.Abs(b)
	}
	return math.Abs(b-a) / math.Abs(a)
}

// normalizeDeviation maps a relative deviation onto [0,1], saturating at full.
func normalizeDeviation(dev, full float64) float64 {
	if full <= 0 {
		return 0
	}
	return clamp01(dev / full)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
