package analysis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"prediction-pipeline/internal/domain"
)

// SpecialistPool runs the applicable specialists for a triaged bundle
// concurrently. One specialist's failure is absorbed and recorded, never
// aborting the bundle or the run (all-settled semantics).
type SpecialistPool struct {
	invoker Invoker
	specs   []domain.SpecialistSpec
	logger  *log.Logger
}

// NewSpecialistPool creates a pool over an asset class's specialist catalog.
func NewSpecialistPool(invoker Invoker, specs []domain.SpecialistSpec, logger *log.Logger) *SpecialistPool {
	if logger == nil {
		logger = log.Default()
	}
	return &SpecialistPool{
		invoker: invoker,
		specs:   specs,
		logger:  logger,
	}
}

// Analyze runs every specialist whose team was selected by triage.
// Returns completed analyses and error strings for failed invocations.
func (p *SpecialistPool) Analyze(ctx context.Context, bundle *domain.EnrichedClaimBundle, triage *domain.TriageResult) ([]*domain.SpecialistAnalysis, []string) {
	applicable := p.applicableSpecs(triage.SpecialistTeams)
	if len(applicable) == 0 {
		return nil, nil
	}

	summary := RenderBundleSummary(bundle)

	type outcome struct {
		analysis *domain.SpecialistAnalysis
		err      string
	}

	results := make([]outcome, len(applicable))
	var wg sync.WaitGroup
	for i, spec := range applicable {
		wg.Add(1)
		go func(i int, spec domain.SpecialistSpec) {
			defer wg.Done()
			// A panicking invocation is recorded like any other failure.
			defer func() {
				if r := recover(); r != nil {
					results[i] = outcome{err: fmt.Sprintf("specialist %s on %s: panic: %v", spec.Name, bundle.Instrument, r)}
				}
			}()

			raw, err := p.invoker.Invoke(ctx, spec.SystemPrompt, renderPrompt(spec.PromptTemplate, summary))
			if err != nil {
				results[i] = outcome{err: fmt.Sprintf("specialist %s on %s: %v", spec.Name, bundle.Instrument, err)}
				return
			}

			analysis, err := ParseSpecialistAnalysis(raw, spec.Name, bundle.Instrument)
			if err != nil {
				results[i] = outcome{err: fmt.Sprintf("specialist %s on %s: %v", spec.Name, bundle.Instrument, err)}
				return
			}
			results[i] = outcome{analysis: analysis}
		}(i, spec)
	}
	wg.Wait()

	var analyses []*domain.SpecialistAnalysis
	var errs []string
	for _, r := range results {
		if r.err != "" {
			p.logger.Printf("[specialists] %s", r.err)
			errs = append(errs, r.err)
			continue
		}
		analyses = append(analyses, r.analysis)
	}

	return analyses, errs
}

// applicableSpecs filters the catalog to the teams triage selected,
// preserving a deterministic order.
func (p *SpecialistPool) applicableSpecs(teams []string) []domain.SpecialistSpec {
	selected := make(map[string]bool, len(teams))
	for _, t := range teams {
		selected[t] = true
	}

	var specs []domain.SpecialistSpec
	for _, s := range p.specs {
		if selected[s.Team] {
			specs = append(specs, s)
		}
	}
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Name < specs[j].Name
	})
	return specs
}
