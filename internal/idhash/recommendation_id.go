package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeRecommendationID computes a deterministic recommendation ID,
// unique per run. Formula: SHA256(run_id|instrument|action), base58-encoded,
// truncated. Determinism lets evaluator challenges reference the
// recommendation before it is packaged.
func ComputeRecommendationID(runID, instrument, action string) string {
	data := fmt.Sprintf("%s|%s|%s", runID, instrument, action)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}

// ComputePositionID computes a deterministic position ID.
// Formula: SHA256(portfolio_id|symbol|direction|opened_at_ms).
func ComputePositionID(portfolioID, symbol, direction string, openedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d", portfolioID, symbol, direction, openedAtMs)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
