package environment

import (
	"context"
	"net"
	"strings"
)

// Environment represents the deployment environment a process runs in.
type Environment string

const (
	// Development is a local machine (localhost, loopback addresses).
	Development Environment = "dev"
	// Staging covers staging and preview deployments.
	Staging Environment = "staging"
	// Production is any other host.
	Production Environment = "prod"
)

// String implements fmt.Stringer.
func (e Environment) String() string {
	return string(e)
}

// Valid reports whether e is one of the known environments.
func (e Environment) Valid() bool {
	switch e {
	case Development, Staging, Production:
		return true
	}
	return false
}

// Parse maps a configuration value to an Environment.
// Long names and common aliases are accepted. Unknown values yield false.
func Parse(s string) (Environment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "local":
		return Development, true
	case "staging", "stage", "preview":
		return Staging, true
	case "prod", "production":
		return Production, true
	}
	return "", false
}

// FromHost derives the environment from a host name.
// An optional port is ignored. The rules apply in order:
// loopback hosts are Development, hosts containing "staging" or "preview" are
// Staging, everything else is Production.
func FromHost(host string) Environment {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	switch {
	case host == "localhost" || host == "127.0.0.1" || host == "::1":
		return Development
	case strings.Contains(host, "staging") || strings.Contains(host, "preview"):
		return Staging
	default:
		return Production
	}
}

type contextKey struct{}

// WithContext adds environment to context
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext retrieves environment from context.
// The second value is false when no environment was attached.
func FromContext(ctx context.Context) (Environment, bool) {
	if ctx == nil {
		return "", false
	}
	env, ok := ctx.Value(contextKey{}).(Environment)
	return env, ok && env != ""
}

// FromContextOr returns the environment attached to ctx or fallback.
func FromContextOr(ctx context.Context, fallback Environment) Environment {
	if env, ok := FromContext(ctx); ok {
		return env
	}
	return fallback
}

// IsProduction checks if the environment from context is production
func IsProduction(ctx context.Context) bool {
	env, _ := FromContext(ctx)
	return env == Production
}

// IsDevelopment checks if the environment from context is development
func IsDevelopment(ctx context.Context) bool {
	env, _ := FromContext(ctx)
	return env == Development
}

// IsStaging checks if the environment from context is staging
func IsStaging(ctx context.Context) bool {
	env, _ := FromContext(ctx)
	return env == Staging
}
