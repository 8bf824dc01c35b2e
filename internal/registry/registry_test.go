package registry

import (
	"testing"
)

func TestLookup(t *testing.T) {
	for _, slug := range Slugs() {
		c, err := Lookup(slug)
		if err != nil {
			t.Fatalf("Lookup(%s) failed: %v", slug, err)
		}
		if c.Slug != slug {
			t.Errorf("Slug mismatch: %s vs %s", c.Slug, slug)
		}
		if len(c.Teams) == 0 || len(c.Specialists) == 0 || len(c.Evaluators) == 0 || len(c.Profiles) == 0 {
			t.Errorf("Asset class %s is incomplete", slug)
		}
	}

	if _, err := Lookup("bonds"); err == nil {
		t.Error("Unknown slug must fail")
	}
}

func TestSpecialistTeamsAreRegistered(t *testing.T) {
	for _, slug := range Slugs() {
		c, _ := Lookup(slug)
		teams := make(map[string]bool)
		for _, team := range c.Teams {
			teams[team] = true
		}
		for _, s := range c.Specialists {
			if !teams[s.Team] {
				t.Errorf("%s: specialist %s references unregistered team %s", slug, s.Name, s.Team)
			}
		}
	}
}

func TestProfileLookup(t *testing.T) {
	equities, _ := Lookup("equities")
	p, err := equities.Profile("moderate")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if p.AllocationPct <= 0 || p.MinConfidence <= 0 {
		t.Errorf("Profile must carry sizing policy: %+v", p)
	}

	if _, err := equities.Profile("degen"); err == nil {
		t.Error("Cross-class profile names must not resolve")
	}
}

func TestPromptTemplatesHavePlaceholder(t *testing.T) {
	for _, slug := range Slugs() {
		c, _ := Lookup(slug)
		for _, s := range c.Specialists {
			if s.SystemPrompt == "" || s.PromptTemplate == "" {
				t.Errorf("%s: specialist %s missing prompts", slug, s.Name)
			}
		}
		for _, e := range c.Evaluators {
			if e.SystemPrompt == "" || e.PromptTemplate == "" {
				t.Errorf("%s: evaluator %s missing prompts", slug, e.Name)
			}
		}
	}
}
