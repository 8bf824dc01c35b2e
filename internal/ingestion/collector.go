// Package ingestion polls market observation tools and assembles their
// output into a run datapoint.
package ingestion

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/idhash"
)

// Collector is one observation tool. Collect returns the claims the tool
// produced for this poll; a failing tool returns an error and contributes
// nothing, it never takes down the poll.
type Collector interface {
	ToolID() string
	Collect(ctx context.Context) ([]*domain.Claim, error)
}

// PollTools fans out to every collector concurrently and gathers the
// all-settled results. Invalid claims are dropped at the boundary.
func PollTools(ctx context.Context, collectors []Collector, nowMs int64, logger *log.Logger) ([]*domain.SourceResult, []string) {
	if logger == nil {
		logger = log.Default()
	}

	type outcome struct {
		result *domain.SourceResult
		err    string
	}

	results := make([]outcome, len(collectors))
	var wg sync.WaitGroup
	for i, c := range collectors {
		wg.Add(1)
		go func(i int, c Collector) {
			defer wg.Done()
			// A panicking tool is a failed tool, not a failed poll.
			defer func() {
				if r := recover(); r != nil {
					results[i] = outcome{err: fmt.Sprintf("tool %s: panic: %v", c.ToolID(), r)}
				}
			}()

			claims, err := c.Collect(ctx)
			if err != nil {
				results[i] = outcome{err: fmt.Sprintf("tool %s: %v", c.ToolID(), err)}
				return
			}

			valid := make([]*domain.Claim, 0, len(claims))
			for _, cl := range claims {
				if !cl.Valid() {
					logger.Printf("[ingestion] tool %s emitted invalid claim, dropped", c.ToolID())
					continue
				}
				valid = append(valid, cl)
			}

			results[i] = outcome{result: &domain.SourceResult{
				ToolID:    c.ToolID(),
				FetchedAt: nowMs,
				Claims:    valid,
			}}
		}(i, c)
	}
	wg.Wait()

	var sources []*domain.SourceResult
	var errs []string
	for _, r := range results {
		if r.err != "" {
			logger.Printf("[ingestion] %s", r.err)
			errs = append(errs, r.err)
			continue
		}
		sources = append(sources, r.result)
	}
	return sources, errs
}

// BuildDatapoint assembles the source results into the run's datapoint.
// AllClaims is exactly the union of the per-source claims; Instruments is
// the sorted set of instruments observed.
func BuildDatapoint(agentID, runID string, sources []*domain.SourceResult, nowMs int64) *domain.Datapoint {
	var all []*domain.Claim
	seen := make(map[string]bool)
	var instruments []string

	for _, s := range sources {
		for _, c := range s.Claims {
			all = append(all, c)
			if !seen[c.Instrument] {
				seen[c.Instrument] = true
				instruments = append(instruments, c.Instrument)
			}
		}
	}
	sort.Strings(instruments)

	return &domain.Datapoint{
		DatapointID: idhash.ComputeDatapointID(agentID, runID, nowMs),
		AgentID:     agentID,
		Timestamp:   nowMs,
		Sources:     sources,
		AllClaims:   all,
		Instruments: instruments,
		Metadata:    map[string]string{"source_count": fmt.Sprintf("%d", len(sources))},
	}
}
