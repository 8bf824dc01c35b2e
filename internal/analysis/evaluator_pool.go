package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"prediction-pipeline/internal/domain"
	"prediction-pipeline/internal/idhash"
)

// EvaluatorPool challenges an emerging consensus for an instrument. Every
// evaluator runs concurrently with the same all-settled semantics as the
// specialist pool.
type EvaluatorPool struct {
	invoker Invoker
	specs   []domain.EvaluatorSpec
	logger  *log.Logger
}

// NewEvaluatorPool creates a pool over an asset class's evaluator catalog.
func NewEvaluatorPool(invoker Invoker, specs []domain.EvaluatorSpec, logger *log.Logger) *EvaluatorPool {
	if logger == nil {
		logger = log.Default()
	}
	return &EvaluatorPool{
		invoker: invoker,
		specs:   specs,
		logger:  logger,
	}
}

// Evaluate runs every evaluator against the consensus built from the
// specialist analyses. The recommendation ID is derived up front so that
// challenges attach to the recommendation the packager will emit.
func (p *EvaluatorPool) Evaluate(ctx context.Context, runID string, bundle *domain.EnrichedClaimBundle, analyses []*domain.SpecialistAnalysis, action string, confidence float64) ([]*domain.EvaluatorChallenge, []string) {
	if len(p.specs) == 0 || len(analyses) == 0 {
		return nil, nil
	}

	recommendationID := idhash.ComputeRecommendationID(runID, bundle.Instrument, action)
	prompt := renderConsensusSummary(bundle, analyses, action, confidence)

	type outcome struct {
		challenge *domain.EvaluatorChallenge
		err       string
	}

	results := make([]outcome, len(p.specs))
	var wg sync.WaitGroup
	for i, spec := range p.specs {
		wg.Add(1)
		go func(i int, spec domain.EvaluatorSpec) {
			defer wg.Done()
			// A panicking invocation is recorded like any other failure.
			defer func() {
				if r := recover(); r != nil {
					results[i] = outcome{err: fmt.Sprintf("evaluator %s on %s: panic: %v", spec.Name, bundle.Instrument, r)}
				}
			}()

			raw, err := p.invoker.Invoke(ctx, spec.SystemPrompt, renderPrompt(spec.PromptTemplate, prompt))
			if err != nil {
				results[i] = outcome{err: fmt.Sprintf("evaluator %s on %s: %v", spec.Name, bundle.Instrument, err)}
				return
			}

			challenge, err := ParseEvaluatorChallenge(raw, spec.Name, spec.ChallengeType, bundle.Instrument, recommendationID)
			if err != nil {
				results[i] = outcome{err: fmt.Sprintf("evaluator %s on %s: %v", spec.Name, bundle.Instrument, err)}
				return
			}
			results[i] = outcome{challenge: challenge}
		}(i, spec)
	}
	wg.Wait()

	var challenges []*domain.EvaluatorChallenge
	var errs []string
	for _, r := range results {
		if r.err != "" {
			p.logger.Printf("[evaluators] %s", r.err)
			errs = append(errs, r.err)
			continue
		}
		challenges = append(challenges, r.challenge)
	}

	return challenges, errs
}

// renderConsensusSummary presents the specialists' positions alongside the
// bundle so evaluators attack the reasoning, not just the data.
func renderConsensusSummary(bundle *domain.EnrichedClaimBundle, analyses []*domain.SpecialistAnalysis, action string, confidence float64) string {
	var sb strings.Builder

	sb.WriteString(RenderBundleSummary(bundle))

	fmt.Fprintf(&sb, "\nEmerging consensus: %s (confidence %.2f)\n", action, confidence)
	sb.WriteString("Specialist positions:\n")
	for _, a := range analyses {
		fmt.Fprintf(&sb, "- %s: %s (%.2f) %s\n", a.Specialist, a.Conclusion, a.Confidence, a.Analysis)
		for _, rf := range a.RiskFactors {
			fmt.Fprintf(&sb, "  risk: %s\n", rf)
		}
	}

	return sb.String()
}
