package feature

import "github.com/restorelab/flagkit/pkg/environment"

// Reason names the evaluation step that produced a decision.
type Reason string

const (
	ReasonOverride    Reason = "override"
	ReasonUnknown     Reason = "unknown_feature"
	ReasonStatic      Reason = "static"
	ReasonVersion     Reason = "version"
	ReasonDisabled    Reason = "disabled"
	ReasonEnvironment Reason = "environment"
	ReasonNoUser      Reason = "no_user"
	ReasonBlacklisted Reason = "blacklisted"
	ReasonWhitelisted Reason = "whitelisted"
	ReasonRollout     Reason = "rollout"
	ReasonDefault     Reason = "default"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Feature     string                  `json:"feature"`
	Enabled     bool                    `json:"enabled"`
	Reason      Reason                  `json:"reason"`
	Environment environment.Environment `json:"environment"`
	// Bucket is set when the rollout percentage decided.
	Bucket *int `json:"bucket,omitempty"`
}
