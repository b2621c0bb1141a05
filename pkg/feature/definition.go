package feature

import (
	"slices"

	"github.com/restorelab/flagkit/pkg/environment"
)

// Definition is the configured shape of a feature.
// It is implemented by Bool, Version and Advanced only.
type Definition interface {
	isDefinition()
}

// Bool is a feature that is statically on or off.
type Bool bool

// Version selects among named variants (for example a model label).
// A version feature is always considered enabled.
type Version string

// Advanced is a targeted feature with optional rollout rules.
type Advanced struct {
	Enabled bool

	// RolloutPercentage admits users whose bucket is below the value.
	// Nil means no percentage rollout.
	RolloutPercentage *int

	// UserWhitelist bypasses the rollout percentage.
	UserWhitelist []string
	// UserBlacklist always wins over the whitelist.
	UserBlacklist []string

	// Environments restricts the feature to the listed environments.
	// Empty means every environment.
	Environments []environment.Environment

	Description string
	ReleaseDate string
}

func (Bool) isDefinition()     {}
func (Version) isDefinition()  {}
func (Advanced) isDefinition() {}

// Percent returns a pointer to p, for use in Advanced.RolloutPercentage.
func Percent(p int) *int {
	return &p
}

// clone returns a deep copy so registry entries can't be mutated through
// values handed out to callers.
func (a Advanced) clone() Advanced {
	c := a
	if a.RolloutPercentage != nil {
		c.RolloutPercentage = Percent(*a.RolloutPercentage)
	}
	c.UserWhitelist = slices.Clone(a.UserWhitelist)
	c.UserBlacklist = slices.Clone(a.UserBlacklist)
	c.Environments = slices.Clone(a.Environments)
	return c
}

// Flag binds a feature name to its definition.
type Flag struct {
	Name       string
	Definition Definition
}

func cloneDefinition(def Definition) Definition {
	if a, ok := def.(Advanced); ok {
		return a.clone()
	}
	return def
}
