package analysis

import (
	"fmt"
	"strings"

	"prediction-pipeline/internal/domain"
)

// RenderBundleSummary renders an enriched bundle into the user-prompt body
// consumed by specialist and evaluator templates.
func RenderBundleSummary(b *domain.EnrichedClaimBundle) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Instrument: %s\n", b.Instrument)

	if b.Diff != nil {
		fmt.Fprintf(&sb, "Significance: %.3f (%d new, %d changed, %d removed claims)\n",
			b.Diff.SignificanceScore, len(b.Diff.NewClaims), len(b.Diff.ChangedClaims), len(b.Diff.RemovedClaims))
	}

	sb.WriteString("Current claims:\n")
	for _, c := range b.Claims {
		fmt.Fprintf(&sb, "- [%s] value=%.6g confidence=%.2f", c.Type, c.Value, c.Confidence)
		if c.Detail != "" {
			fmt.Fprintf(&sb, " (%s)", c.Detail)
		}
		sb.WriteString("\n")
	}

	if b.Diff != nil && len(b.Diff.ChangedClaims) > 0 {
		sb.WriteString("Changed since last run:\n")
		for _, c := range b.Diff.ChangedClaims {
			fmt.Fprintf(&sb, "- [%s] now %.6g\n", c.Type, c.Value)
		}
	}

	return sb.String()
}

// renderPrompt substitutes the bundle summary into a spec template. A
// template without a placeholder gets the summary appended.
func renderPrompt(template, summary string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, summary)
	}
	return template + "\n\n" + summary
}
