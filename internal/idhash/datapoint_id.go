package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeDatapointID computes a deterministic datapoint ID.
// Formula: SHA256(agent_id|run_id|timestamp_ms), base58-encoded, truncated.
func ComputeDatapointID(agentID, runID string, timestampMs int64) string {
	data := fmt.Sprintf("%s|%s|%d", agentID, runID, timestampMs)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
