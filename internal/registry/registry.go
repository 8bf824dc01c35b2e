// Package registry holds the built-in asset-class catalogs: specialist
// teams, evaluator rosters, risk profiles and triage thresholds.
package registry

import (
	"fmt"
	"sort"

	"prediction-pipeline/internal/domain"
)

// AssetClass bundles the configuration for one market vertical.
type AssetClass struct {
	Slug        string
	Teams       []string // specialist teams in priority order
	Specialists []domain.SpecialistSpec
	Evaluators  []domain.EvaluatorSpec
	Profiles    []domain.RiskProfile
	Thresholds  domain.TriageThresholds
}

// Profile returns the named risk profile for this asset class.
func (a *AssetClass) Profile(name string) (domain.RiskProfile, error) {
	for _, p := range a.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return domain.RiskProfile{}, fmt.Errorf("asset class %s has no risk profile %q", a.Slug, name)
}

var classes = map[string]*AssetClass{
	"equities": equities(),
	"crypto":   crypto(),
}

// Lookup returns the asset class for a slug.
func Lookup(slug string) (*AssetClass, error) {
	c, ok := classes[slug]
	if !ok {
		return nil, fmt.Errorf("unknown asset class %q", slug)
	}
	return c, nil
}

// Slugs returns the registered asset-class slugs, sorted.
func Slugs() []string {
	slugs := make([]string, 0, len(classes))
	for s := range classes {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}

func equities() *AssetClass {
	return &AssetClass{
		Slug:  "equities",
		Teams: []string{"technical", "fundamental", "macro"},
		Specialists: []domain.SpecialistSpec{
			{
				Name:           "momentum",
				Team:           "technical",
				SystemPrompt:   specialistSystemPrompt("a technical analyst focused on price momentum, trend strength and volume confirmation"),
				PromptTemplate: specialistTemplate,
			},
			{
				Name:           "mean-reversion",
				Team:           "technical",
				SystemPrompt:   specialistSystemPrompt("a technical analyst focused on overextension, support/resistance and reversion setups"),
				PromptTemplate: specialistTemplate,
			},
			{
				Name:           "valuation",
				Team:           "fundamental",
				SystemPrompt:   specialistSystemPrompt("a fundamental analyst weighing valuation, earnings quality and guidance revisions"),
				PromptTemplate: specialistTemplate,
			},
			{
				Name:           "news-flow",
				Team:           "fundamental",
				SystemPrompt:   specialistSystemPrompt("an event-driven analyst interpreting headlines, filings and sentiment shifts"),
				PromptTemplate: specialistTemplate,
			},
			{
				Name:           "macro-regime",
				Team:           "macro",
				SystemPrompt:   specialistSystemPrompt("a macro analyst judging how rates, liquidity and sector rotation affect the instrument"),
				PromptTemplate: specialistTemplate,
			},
		},
		Evaluators: []domain.EvaluatorSpec{
			{
				Name:           "contrarian",
				ChallengeType:  domain.ChallengeContrarian,
				SystemPrompt:   evaluatorSystemPrompt("argue the opposite side of the consensus as strongly as the evidence allows"),
				PromptTemplate: evaluatorTemplate,
			},
			{
				Name:           "risk-officer",
				ChallengeType:  domain.ChallengeRiskAssessment,
				SystemPrompt:   evaluatorSystemPrompt("probe position risk: drawdown scenarios, crowding, liquidity and event exposure"),
				PromptTemplate: evaluatorTemplate,
			},
			{
				Name:           "historian",
				ChallengeType:  domain.ChallengeHistoricalPattern,
				SystemPrompt:   evaluatorSystemPrompt("test the thesis against comparable historical setups and their outcomes"),
				PromptTemplate: evaluatorTemplate,
			},
		},
		Profiles: []domain.RiskProfile{
			{Name: "conservative", AllocationPct: 0.02, StopLossPct: 0.05, TimeHorizon: "position", MinConfidence: 0.6},
			{Name: "moderate", AllocationPct: 0.05, StopLossPct: 0.08, TimeHorizon: "swing", MinConfidence: 0.45},
			{Name: "aggressive", AllocationPct: 0.10, StopLossPct: 0.12, TimeHorizon: "swing", MinConfidence: 0.3},
		},
		Thresholds: domain.TriageThresholds{MinSignificanceScore: 0.15, LookbackHours: 48},
	}
}

func crypto() *AssetClass {
	return &AssetClass{
		Slug:  "crypto",
		Teams: []string{"onchain", "technical", "defi"},
		Specialists: []domain.SpecialistSpec{
			{
				Name:           "flow-tracker",
				Team:           "onchain",
				SystemPrompt:   specialistSystemPrompt("an on-chain analyst reading exchange flows, holder cohorts and wallet activity"),
				PromptTemplate: specialistTemplate,
			},
			{
				Name:           "momentum",
				Team:           "technical",
				SystemPrompt:   specialistSystemPrompt("a crypto technical analyst focused on momentum, funding rates and volume profile"),
				PromptTemplate: specialistTemplate,
			},
			{
				Name:           "defi-yield",
				Team:           "defi",
				SystemPrompt:   specialistSystemPrompt("a DeFi analyst weighing TVL shifts, protocol revenue and incentive changes"),
				PromptTemplate: specialistTemplate,
			},
		},
		Evaluators: []domain.EvaluatorSpec{
			{
				Name:           "contrarian",
				ChallengeType:  domain.ChallengeContrarian,
				SystemPrompt:   evaluatorSystemPrompt("argue the opposite side of the consensus as strongly as the evidence allows"),
				PromptTemplate: evaluatorTemplate,
			},
			{
				Name:           "correlation-check",
				ChallengeType:  domain.ChallengeCorrelation,
				SystemPrompt:   evaluatorSystemPrompt("test whether the move is idiosyncratic or just beta to BTC and broad risk appetite"),
				PromptTemplate: evaluatorTemplate,
			},
			{
				Name:           "timing-check",
				ChallengeType:  domain.ChallengeTiming,
				SystemPrompt:   evaluatorSystemPrompt("challenge entry timing: is the information already priced in at current levels"),
				PromptTemplate: evaluatorTemplate,
			},
		},
		Profiles: []domain.RiskProfile{
			{Name: "hodler", AllocationPct: 0.03, StopLossPct: 0.15, TimeHorizon: "position", MinConfidence: 0.6},
			{Name: "trader", AllocationPct: 0.05, StopLossPct: 0.10, TimeHorizon: "swing", MinConfidence: 0.45},
			{Name: "degen", AllocationPct: 0.10, StopLossPct: 0.20, TimeHorizon: "intraday", MinConfidence: 0.25},
		},
		Thresholds: domain.TriageThresholds{MinSignificanceScore: 0.2, LookbackHours: 24},
	}
}

const specialistTemplate = `Assess the instrument below and respond with a JSON object:
{"conclusion": "bullish|bearish|neutral|uncertain", "confidence": 0.0-1.0, "analysis": "...", "suggested_action": "buy|sell|hold|none", "risk_factors": ["..."]}

%s`

const evaluatorTemplate = `Challenge the consensus below and respond with a JSON object:
{"passed": true|false, "challenge": "...", "confidence": 0.0-1.0}
Set passed=false only when your challenge materially undermines the call.

%s`

func specialistSystemPrompt(role string) string {
	return "You are " + role + ". Ground every claim in the observations provided. Respond with JSON only."
}

func evaluatorSystemPrompt(mandate string) string {
	return "You are a red-team evaluator. Your mandate: " + mandate + ". Respond with JSON only."
}
