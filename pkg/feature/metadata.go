package feature

import (
	"slices"

	"github.com/restorelab/flagkit/pkg/environment"
)

// Kind is the shape of a feature definition.
type Kind string

const (
	KindUnknown  Kind = "unknown"
	KindBool     Kind = "boolean"
	KindVersion  Kind = "version"
	KindAdvanced Kind = "advanced"
)

// Metadata is a read-only projection of a registry entry for admin and
// debugging views.
type Metadata struct {
	Name              string                    `json:"name"`
	Kind              Kind                      `json:"kind"`
	Enabled           bool                      `json:"enabled"`
	Version           string                    `json:"version,omitempty"`
	Description       string                    `json:"description,omitempty"`
	ReleaseDate       string                    `json:"release_date,omitempty"`
	RolloutPercentage *int                      `json:"rollout_percentage,omitempty"`
	Environments      []environment.Environment `json:"environments,omitempty"`
	HasWhitelist      bool                      `json:"has_whitelist"`
	HasBlacklist      bool                      `json:"has_blacklist"`
}

// Metadata describes the feature registered under name.
// Unknown names yield a disabled record of KindUnknown.
func (r *Registry) Metadata(name string) Metadata {
	md := Metadata{Name: name, Kind: KindUnknown}

	switch def := r.defs[name].(type) {
	case Bool:
		md.Kind = KindBool
		md.Enabled = bool(def)
	case Version:
		md.Kind = KindVersion
		md.Enabled = true
		md.Version = string(def)
	case Advanced:
		md.Kind = KindAdvanced
		md.Enabled = def.Enabled
		md.Description = def.Description
		md.ReleaseDate = def.ReleaseDate
		if def.RolloutPercentage != nil {
			md.RolloutPercentage = Percent(*def.RolloutPercentage)
		}
		md.Environments = slices.Clone(def.Environments)
		md.HasWhitelist = len(def.UserWhitelist) > 0
		md.HasBlacklist = len(def.UserBlacklist) > 0
	}

	return md
}
