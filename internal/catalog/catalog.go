// Package catalog holds the validated, immutable registry of model
// profiles the routing engine selects from.
package catalog

import (
	"fmt"
	"sort"

	"github.com/smartroute/smart-route/internal/config"
	apperrors "github.com/smartroute/smart-route/internal/pkg/errors"
)

// Profile describes one backend model tier.
type Profile struct {
	// Name identifies the profile (e.g. "simple", "technical").
	Name string `json:"name"`

	// Model is the underlying model identifier passed to the inference
	// backend.
	Model string `json:"model"`

	// Threshold is the maximum combined risk score this profile accepts.
	Threshold float64 `json:"threshold"`

	// MinComplexity is the complexity floor below which the profile is
	// ineligible.
	MinComplexity float64 `json:"min_complexity"`

	// ResourceIntensity is the relative cost of running this profile.
	ResourceIntensity int `json:"resource_intensity"`
}

// Catalog is an immutable, validated set of profiles ordered ascending by
// resource intensity. It is safe for concurrent use without locking.
type Catalog struct {
	profiles []Profile
}

// New validates the profiles and builds a catalog. It fails with an
// INVALID_CATALOG error when any profile has a threshold outside (0,1], a
// negative complexity floor, a resource intensity below 1, or a duplicate
// name.
func New(profiles []Profile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, apperrors.InvalidCatalogError("catalog must contain at least one profile")
	}

	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.Name == "" {
			return nil, apperrors.InvalidCatalogError("profile name cannot be empty")
		}
		if seen[p.Name] {
			return nil, apperrors.InvalidCatalogError(fmt.Sprintf("duplicate profile name: %s", p.Name))
		}
		seen[p.Name] = true

		if p.Model == "" {
			return nil, apperrors.InvalidCatalogError(fmt.Sprintf("profile %s has no model", p.Name))
		}
		if p.Threshold <= 0 || p.Threshold > 1 {
			return nil, apperrors.InvalidCatalogError(
				fmt.Sprintf("profile %s threshold %f outside (0, 1]", p.Name, p.Threshold))
		}
		if p.MinComplexity < 0 {
			return nil, apperrors.InvalidCatalogError(
				fmt.Sprintf("profile %s min_complexity %f is negative", p.Name, p.MinComplexity))
		}
		if p.ResourceIntensity < 1 {
			return nil, apperrors.InvalidCatalogError(
				fmt.Sprintf("profile %s resource_intensity %d below 1", p.Name, p.ResourceIntensity))
		}
	}

	ordered := make([]Profile, len(profiles))
	copy(ordered, profiles)

	// Ascending by cost; equal cost prefers the higher threshold (more
	// conservative headroom).
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].ResourceIntensity != ordered[j].ResourceIntensity {
			return ordered[i].ResourceIntensity < ordered[j].ResourceIntensity
		}
		return ordered[i].Threshold > ordered[j].Threshold
	})

	return &Catalog{profiles: ordered}, nil
}

// FromConfig builds a catalog from configuration profiles.
func FromConfig(cfgs []config.ProfileConfig) (*Catalog, error) {
	profiles := make([]Profile, len(cfgs))
	for i, c := range cfgs {
		profiles[i] = Profile{
			Name:              c.Name,
			Model:             c.Model,
			Threshold:         c.Threshold,
			MinComplexity:     c.MinComplexity,
			ResourceIntensity: c.ResourceIntensity,
		}
	}
	return New(profiles)
}

// Eligible returns the profiles whose complexity floor admits the given
// complexity, ordered ascending by resource intensity.
func (c *Catalog) Eligible(complexity float64) []Profile {
	out := make([]Profile, 0, len(c.profiles))
	for _, p := range c.profiles {
		if p.MinComplexity <= complexity {
			out = append(out, p)
		}
	}
	return out
}

// Profiles returns all profiles in selection order.
func (c *Catalog) Profiles() []Profile {
	out := make([]Profile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// HasZeroFloor reports whether some profile accepts complexity zero.
// Catalogs without one can make routing fail outright for trivial queries.
func (c *Catalog) HasZeroFloor() bool {
	for _, p := range c.profiles {
		if p.MinComplexity == 0 {
			return true
		}
	}
	return false
}
