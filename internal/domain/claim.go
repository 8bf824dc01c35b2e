package domain

// Claim is an atomic observation about one instrument.
type Claim struct {
	Type       string  // claim type (price, volume, sentiment, ...)
	Instrument string  // ticker or symbol the claim is about
	Value      float64 // numeric observation
	Detail     string  // optional free-form context (headline, note)
	Confidence float64 // collector confidence in [0,1]
	Timestamp  int64   // observation time (ms)
}

// Claim type constants
const (
	ClaimTypePrice     = "price"
	ClaimTypeVolume    = "volume"
	ClaimTypeSentiment = "sentiment"
	ClaimTypeNews      = "news"
	ClaimTypeOnChain   = "onchain"
)

// Valid reports whether the claim satisfies the basic invariants:
// non-empty instrument and a well-formed timestamp.
func (c *Claim) Valid() bool {
	return c != nil && c.Instrument != "" && c.Timestamp > 0
}

// SourceResult is one collector's output for a run.
type SourceResult struct {
	ToolID    string
	FetchedAt int64 // ms
	Claims    []*Claim
}

// Datapoint is the full collection result for one run.
// AllClaims is exactly the union of Sources[].Claims.
type Datapoint struct {
	DatapointID string
	AgentID     string
	Timestamp   int64 // ms
	Sources     []*SourceResult
	AllClaims   []*Claim
	Instruments []string
	Metadata    map[string]string
}

// ClaimBundle groups the claims for one instrument within a run.
type ClaimBundle struct {
	Instrument string
	Claims     []*Claim
}

// ClaimsDiff classifies a bundle's claims against history.
type ClaimsDiff struct {
	NewClaims         []*Claim
	ChangedClaims     []*Claim
	RemovedClaims     []*Claim
	SignificanceScore float64 // in [0,1]
}

// EnrichedClaimBundle is a ClaimBundle after history enrichment and the
// proceed decision. ShouldProceed is decided once per run and immutable after.
type EnrichedClaimBundle struct {
	ClaimBundle

	HistoricalClaims []*Claim
	Diff             *ClaimsDiff
	ShouldProceed    bool
	ProceedReason    string
}
