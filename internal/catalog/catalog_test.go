package catalog

import (
	"testing"

	"github.com/smartroute/smart-route/internal/config"
	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

func validProfiles() []Profile {
	return []Profile{
		{Name: "analytical", Model: "codeqwen", Threshold: 0.6, MinComplexity: 15, ResourceIntensity: 5},
		{Name: "simple", Model: "mistral", Threshold: 0.3, MinComplexity: 0, ResourceIntensity: 1},
		{Name: "technical", Model: "llama2", Threshold: 0.5, MinComplexity: 10, ResourceIntensity: 3},
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Profile) []Profile
	}{
		{"empty catalog", func(p []Profile) []Profile { return nil }},
		{"zero threshold", func(p []Profile) []Profile { p[0].Threshold = 0; return p }},
		{"threshold above one", func(p []Profile) []Profile { p[0].Threshold = 1.5; return p }},
		{"negative min complexity", func(p []Profile) []Profile { p[1].MinComplexity = -1; return p }},
		{"zero resource intensity", func(p []Profile) []Profile { p[1].ResourceIntensity = 0; return p }},
		{"negative resource intensity", func(p []Profile) []Profile { p[2].ResourceIntensity = -3; return p }},
		{"duplicate name", func(p []Profile) []Profile { p[2].Name = p[0].Name; return p }},
		{"missing model", func(p []Profile) []Profile { p[0].Model = ""; return p }},
		{"missing name", func(p []Profile) []Profile { p[0].Name = ""; return p }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(validProfiles()))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !apperrors.HasCode(err, apperrors.CodeInvalidCatalog) {
				t.Errorf("expected INVALID_CATALOG, got %v", err)
			}
		})
	}
}

func TestEligibleOrdering(t *testing.T) {
	c, err := New(validProfiles())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		complexity float64
		expected   []string
	}{
		{0, []string{"simple"}},
		{5, []string{"simple"}},
		{10, []string{"simple", "technical"}},
		{12, []string{"simple", "technical"}},
		{20, []string{"simple", "technical", "analytical"}},
	}

	for _, tt := range tests {
		got := c.Eligible(tt.complexity)
		if len(got) != len(tt.expected) {
			t.Errorf("Eligible(%f) returned %d profiles, want %d", tt.complexity, len(got), len(tt.expected))
			continue
		}
		for i, p := range got {
			if p.Name != tt.expected[i] {
				t.Errorf("Eligible(%f)[%d] = %s, want %s", tt.complexity, i, p.Name, tt.expected[i])
			}
		}
	}
}

func TestTieBreakPrefersHigherThreshold(t *testing.T) {
	c, err := New([]Profile{
		{Name: "loose", Model: "m1", Threshold: 0.3, MinComplexity: 0, ResourceIntensity: 2},
		{Name: "tight", Model: "m2", Threshold: 0.7, MinComplexity: 0, ResourceIntensity: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := c.Eligible(0)
	if got[0].Name != "tight" {
		t.Errorf("equal-cost ordering: got %s first, want tight", got[0].Name)
	}
}

func TestHasZeroFloor(t *testing.T) {
	c, err := New(validProfiles())
	if err != nil {
		t.Fatal(err)
	}
	if !c.HasZeroFloor() {
		t.Error("expected zero-floor profile")
	}

	c2, err := New([]Profile{
		{Name: "only", Model: "m", Threshold: 0.5, MinComplexity: 5, ResourceIntensity: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c2.HasZeroFloor() {
		t.Error("expected no zero-floor profile")
	}
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(config.DefaultProfiles())
	if err != nil {
		t.Fatalf("FromConfig on defaults failed: %v", err)
	}
	if len(c.Profiles()) != 3 {
		t.Errorf("expected 3 profiles, got %d", len(c.Profiles()))
	}
	if !c.HasZeroFloor() {
		t.Error("default catalog should have a zero-floor profile")
	}
}
