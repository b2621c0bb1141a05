package feature_test

import (
	"context"
	"testing"

	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/feature"
)

func BenchmarkEngine(b *testing.B) {
	registry, err := feature.NewRegistry([]feature.Flag{
		{Name: "static", Definition: feature.Bool(true)},
		{Name: "rollout", Definition: feature.Advanced{Enabled: true, RolloutPercentage: feature.Percent(50)}},
		{Name: "targeted", Definition: feature.Advanced{
			Enabled:       true,
			UserWhitelist: []string{"user-1", "user-2", "user-3"},
			UserBlacklist: []string{"user-4"},
			Environments:  []environment.Environment{environment.Production},
		}},
	})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.Run("Bucket", func(b *testing.B) {
		for b.Loop() {
			_ = feature.Bucket("user-123@example.com", "restoration-timeline")
		}
	})

	b.Run("Static", func(b *testing.B) {
		engine, _ := feature.NewEngine(registry)
		for b.Loop() {
			_ = engine.IsEnabledFor(ctx, "static", "user-123")
		}
	})

	b.Run("Rollout", func(b *testing.B) {
		engine, _ := feature.NewEngine(registry)
		for b.Loop() {
			_ = engine.IsEnabledFor(ctx, "rollout", "user-123")
		}
	})

	b.Run("Targeted", func(b *testing.B) {
		engine, _ := feature.NewEngine(registry)
		for b.Loop() {
			_ = engine.IsEnabledFor(ctx, "targeted", "user-2")
		}
	})

	b.Run("WithOverrides", func(b *testing.B) {
		engine, _ := feature.NewEngine(registry,
			feature.WithEnvironment(environment.Development),
			feature.WithOverrideStorage(feature.NewMemoryStorage()),
		)
		for b.Loop() {
			_ = engine.IsEnabledFor(ctx, "rollout", "user-123")
		}
	})

	b.Run("EnabledFeatures", func(b *testing.B) {
		engine, _ := feature.NewEngine(registry)
		for b.Loop() {
			_ = engine.EnabledFeaturesFor(ctx, "user-123")
		}
	})
}
