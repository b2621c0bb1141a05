// Package feature decides whether named features are active for a user.
//
// # Architecture
//
// The package is built around four pieces:
//
// 1. Registry - the immutable, deploy-time set of feature definitions
// 2. Bucket - a deterministic mapping of (user, feature) to [0,99]
// 3. Overrides - a development-only override layer over a client-local Storage
// 4. Engine - the evaluator combining the three
//
// A Definition is one of Bool (static toggle), Version (variant label, always
// enabled) or Advanced (targeting rules). Evaluation is strict precedence,
// each step short-circuits:
//
//   - development override, when the environment is dev
//   - unknown feature: disabled; Bool: its value; Version: enabled
//   - Advanced disabled: disabled
//   - environment restriction not matching: disabled
//   - no user: enabled
//   - blacklisted user: disabled (wins over the whitelist)
//   - whitelisted user: enabled
//   - rollout percentage p: enabled when Bucket(user, feature) < p
//   - otherwise enabled
//
// # Usage
//
//	import "github.com/restorelab/flagkit/pkg/feature"
//
//	registry, err := feature.NewRegistry([]feature.Flag{
//		{Name: "deep-research", Definition: feature.Bool(true)},
//		{Name: "chat-model", Definition: feature.Version("gpt-4o-2024-08-06")},
//		{Name: "parts-marketplace", Definition: feature.Advanced{
//			Enabled:           true,
//			RolloutPercentage: feature.Percent(25),
//			UserBlacklist:     []string{"banned@example.com"},
//		}},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := feature.NewEngine(registry,
//		feature.WithEnvironment(environment.FromHost(host)),
//		feature.WithOverrideStorage(feature.NewMemoryStorage()),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if engine.IsEnabledFor(ctx, "parts-marketplace", userID) {
//		// show the marketplace
//	}
//
// Registries are usually parsed from YAML compiled into the binary, see
// ParseRegistry.
//
// # Error Handling
//
// Evaluation never fails: unknown features are disabled and unreadable
// override data reads as "no overrides". Override mutations outside
// development are ignored with a warning. Construction errors wrap
// ErrInvalidFlag or ErrInvalidRegistry and can be checked with errors.Is.
//
// # Performance Considerations
//
// The engine indexes whitelists and blacklists once at construction.
// Evaluations other than override lookups are in-memory and allocation-light.
//
// Run benchmarks with: go test -bench=. ./pkg/feature/...
package feature
