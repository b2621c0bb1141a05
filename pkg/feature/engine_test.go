package feature_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restorelab/flagkit/pkg/environment"
	"github.com/restorelab/flagkit/pkg/feature"
)

func newTestEngine(t *testing.T, flags []feature.Flag, opts ...feature.EngineOption) *feature.Engine {
	t.Helper()

	registry, err := feature.NewRegistry(flags)
	require.NoError(t, err)
	engine, err := feature.NewEngine(registry, opts...)
	require.NoError(t, err)
	return engine
}

func sampleUsers(n int) []string {
	users := make([]string, n)
	for i := range users {
		users[i] = fmt.Sprintf("user-%03d", i)
	}
	return users
}

func rollout(p int) feature.Flag {
	return feature.Flag{Name: "F", Definition: feature.Advanced{Enabled: true, RolloutPercentage: feature.Percent(p)}}
}

func TestNewEngine(t *testing.T) {
	t.Parallel()

	_, err := feature.NewEngine(nil)
	require.ErrorIs(t, err, feature.ErrInvalidRegistry)
}

func TestEngineDefinitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine := newTestEngine(t, []feature.Flag{
		{Name: "on", Definition: feature.Bool(true)},
		{Name: "off", Definition: feature.Bool(false)},
		{Name: "chat-model", Definition: feature.Version("gpt-4o")},
		{Name: "open", Definition: feature.Advanced{Enabled: true}},
		{Name: "closed", Definition: feature.Advanced{Enabled: false, UserWhitelist: []string{"vip"}}},
	})

	t.Run("Bool", func(t *testing.T) {
		t.Parallel()
		assert.True(t, engine.IsEnabled(ctx, "on"))
		assert.True(t, engine.IsEnabledFor(ctx, "on", "anyone"))
		assert.False(t, engine.IsEnabled(ctx, "off"))
		assert.Equal(t, feature.ReasonStatic, engine.Evaluate(ctx, "off").Reason)
	})

	t.Run("Version", func(t *testing.T) {
		t.Parallel()
		assert.True(t, engine.IsEnabled(ctx, "chat-model"))
		d := engine.EvaluateFor(ctx, "chat-model", "user-001")
		assert.True(t, d.Enabled)
		assert.Equal(t, feature.ReasonVersion, d.Reason)
	})

	t.Run("UnknownFailsClosed", func(t *testing.T) {
		t.Parallel()
		assert.False(t, engine.IsEnabled(ctx, "retired"))
		assert.False(t, engine.IsEnabledFor(ctx, "retired", "user-001"))
		assert.Equal(t, feature.ReasonUnknown, engine.Evaluate(ctx, "retired").Reason)
	})

	t.Run("AdvancedDefault", func(t *testing.T) {
		t.Parallel()
		d := engine.EvaluateFor(ctx, "open", "user-001")
		assert.True(t, d.Enabled)
		assert.Equal(t, feature.ReasonDefault, d.Reason)
		assert.Nil(t, d.Bucket)
	})

	t.Run("GloballyDisabledBeatsWhitelist", func(t *testing.T) {
		t.Parallel()
		d := engine.EvaluateFor(ctx, "closed", "vip")
		assert.False(t, d.Enabled)
		assert.Equal(t, feature.ReasonDisabled, d.Reason)
		assert.False(t, engine.IsEnabled(ctx, "closed"))
	})

	t.Run("NoUserShortCircuit", func(t *testing.T) {
		t.Parallel()
		// Without a user, targeting is skipped even at 0%.
		e := newTestEngine(t, []feature.Flag{rollout(0)})
		d := e.Evaluate(ctx, "F")
		assert.True(t, d.Enabled)
		assert.Equal(t, feature.ReasonNoUser, d.Reason)
	})

	t.Run("EmptyUserIDIsStillAUser", func(t *testing.T) {
		t.Parallel()
		e := newTestEngine(t, []feature.Flag{rollout(0)})
		assert.False(t, e.IsEnabledFor(ctx, "F", ""))
	})
}

func TestEngineRollout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	users := sampleUsers(100)

	t.Run("ZeroPercent", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{rollout(0)})
		for _, u := range users {
			assert.False(t, engine.IsEnabledFor(ctx, "F", u), u)
		}
	})

	t.Run("HundredPercent", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{rollout(100)})
		for _, u := range users {
			assert.True(t, engine.IsEnabledFor(ctx, "F", u), u)
		}
	})

	t.Run("TwentyFivePercent", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{rollout(25)})
		enabled := 0
		for _, u := range users {
			if engine.IsEnabledFor(ctx, "F", u) {
				enabled++
			}
		}
		assert.GreaterOrEqual(t, enabled, 15)
		assert.LessOrEqual(t, enabled, 35)
	})

	t.Run("StrictLessThan", func(t *testing.T) {
		t.Parallel()
		// user-001 lands in bucket 8 for "F".
		require.Equal(t, 8, feature.Bucket("user-001", "F"))
		assert.False(t, newTestEngine(t, []feature.Flag{rollout(8)}).IsEnabledFor(ctx, "F", "user-001"))
		assert.True(t, newTestEngine(t, []feature.Flag{rollout(9)}).IsEnabledFor(ctx, "F", "user-001"))

		d := newTestEngine(t, []feature.Flag{rollout(9)}).EvaluateFor(ctx, "F", "user-001")
		assert.Equal(t, feature.ReasonRollout, d.Reason)
		require.NotNil(t, d.Bucket)
		assert.Equal(t, 8, *d.Bucket)
	})

	t.Run("MonotonicContainment", func(t *testing.T) {
		t.Parallel()
		percentages := []int{0, 25, 50, 75, 100}
		engines := make([]*feature.Engine, len(percentages))
		for i, p := range percentages {
			engines[i] = newTestEngine(t, []feature.Flag{rollout(p)})
		}

		for _, u := range users {
			for i := 1; i < len(engines); i++ {
				if engines[i-1].IsEnabledFor(ctx, "F", u) {
					assert.True(t, engines[i].IsEnabledFor(ctx, "F", u),
						"user %s enabled at %d%% but not at %d%%", u, percentages[i-1], percentages[i])
				}
			}
		}
	})
}

func TestEngineTargeting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("WhitelistBypassesRollout", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{{Name: "F", Definition: feature.Advanced{
			Enabled: true, RolloutPercentage: feature.Percent(0), UserWhitelist: []string{"special-user@x"},
		}}})
		d := engine.EvaluateFor(ctx, "F", "special-user@x")
		assert.True(t, d.Enabled)
		assert.Equal(t, feature.ReasonWhitelisted, d.Reason)
		assert.False(t, engine.IsEnabledFor(ctx, "F", "someone-else@x"))
	})

	t.Run("BlacklistBeatsRollout", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{{Name: "F", Definition: feature.Advanced{
			Enabled: true, RolloutPercentage: feature.Percent(100), UserBlacklist: []string{"banned@x"},
		}}})
		d := engine.EvaluateFor(ctx, "F", "banned@x")
		assert.False(t, d.Enabled)
		assert.Equal(t, feature.ReasonBlacklisted, d.Reason)
		assert.True(t, engine.IsEnabledFor(ctx, "F", "user-001"))
	})

	t.Run("BlacklistWinsOverWhitelist", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{{Name: "F", Definition: feature.Advanced{
			Enabled:       true,
			UserWhitelist: []string{"both@x"},
			UserBlacklist: []string{"both@x"},
		}}})
		assert.False(t, engine.IsEnabledFor(ctx, "F", "both@x"))
	})

	t.Run("ExactMatchByDefault", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{{Name: "F", Definition: feature.Advanced{
			Enabled: true, RolloutPercentage: feature.Percent(100), UserBlacklist: []string{"banned@x"},
		}}})
		assert.True(t, engine.IsEnabledFor(ctx, "F", "Banned@X"))
	})

	t.Run("NormalizedIdentity", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{{Name: "F", Definition: feature.Advanced{
			Enabled: true, RolloutPercentage: feature.Percent(100), UserBlacklist: []string{"Banned@X"},
		}}}, feature.WithUserIDNormalizer(feature.FoldIdentity))
		assert.False(t, engine.IsEnabledFor(ctx, "F", " banned@x "))
		assert.Equal(t, feature.Bucket("alice@example.com", "F"), engine.UserRolloutBucket("Alice@Example.com", "F"))
	})
}

func TestEngineEnvironment(t *testing.T) {
	t.Parallel()

	devOnly := feature.Flag{Name: "F", Definition: feature.Advanced{
		Enabled:           true,
		RolloutPercentage: feature.Percent(100),
		UserWhitelist:     []string{"vip@x"},
		Environments:      []environment.Environment{environment.Development},
	}}

	t.Run("RestrictedFeatureOffInProduction", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{devOnly}, feature.WithEnvironment(environment.Production))
		ctx := context.Background()
		assert.False(t, engine.IsEnabled(ctx, "F"))
		assert.False(t, engine.IsEnabledFor(ctx, "F", "vip@x"))
		d := engine.EvaluateFor(ctx, "F", "user-001")
		assert.False(t, d.Enabled)
		assert.Equal(t, feature.ReasonEnvironment, d.Reason)
		assert.Equal(t, environment.Production, d.Environment)
	})

	t.Run("RestrictedFeatureOnInDevelopment", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{devOnly}, feature.WithEnvironment(environment.Development))
		assert.True(t, engine.IsEnabledFor(context.Background(), "F", "user-001"))
	})

	t.Run("DefaultResolverReadsContext", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{devOnly})

		assert.False(t, engine.IsEnabled(context.Background(), "F"), "defaults to production")
		assert.Equal(t, environment.Production, engine.Environment(context.Background()))

		ctx := environment.WithContext(context.Background(), environment.Development)
		assert.True(t, engine.IsEnabled(ctx, "F"))
		assert.Equal(t, environment.Development, engine.Environment(ctx))
	})

	t.Run("CustomResolver", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, []feature.Flag{devOnly},
			feature.WithEnvironmentResolver(func(context.Context) environment.Environment {
				return environment.FromHost("localhost:5173")
			}),
		)
		assert.True(t, engine.IsEnabled(context.Background(), "F"))
	})
}

func TestEngineOverrides(t *testing.T) {
	t.Parallel()

	flags := []feature.Flag{
		{Name: "F", Definition: feature.Advanced{Enabled: false}},
		{Name: "G", Definition: feature.Advanced{Enabled: true, UserBlacklist: []string{"banned@x"}}},
	}
	devCtx := environment.WithContext(context.Background(), environment.Development)
	prodCtx := environment.WithContext(context.Background(), environment.Production)

	t.Run("OverrideWinsInDevelopment", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, flags, feature.WithOverrideStorage(feature.NewMemoryStorage()))
		require.NotNil(t, engine.Overrides())

		require.NoError(t, engine.Overrides().Set(devCtx, "F", true))
		for _, u := range sampleUsers(10) {
			assert.True(t, engine.IsEnabledFor(devCtx, "F", u))
		}
		d := engine.Evaluate(devCtx, "F")
		assert.True(t, d.Enabled)
		assert.Equal(t, feature.ReasonOverride, d.Reason)
	})

	t.Run("OverrideBeatsBlacklist", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, flags, feature.WithOverrideStorage(feature.NewMemoryStorage()))
		require.NoError(t, engine.Overrides().Set(devCtx, "G", true))
		assert.True(t, engine.IsEnabledFor(devCtx, "G", "banned@x"))
	})

	t.Run("OverrideIgnoredInProduction", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, flags, feature.WithOverrideStorage(feature.NewMemoryStorage()))
		require.NoError(t, engine.Overrides().Set(devCtx, "F", true))

		assert.False(t, engine.IsEnabledFor(prodCtx, "F", "user-001"))
		assert.Equal(t, feature.ReasonDisabled, engine.Evaluate(prodCtx, "F").Reason)
	})

	t.Run("OverrideForUnknownFeature", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, flags, feature.WithOverrideStorage(feature.NewMemoryStorage()))
		require.NoError(t, engine.Overrides().Set(devCtx, "experimental", true))
		assert.True(t, engine.IsEnabled(devCtx, "experimental"))
		assert.False(t, engine.IsEnabled(prodCtx, "experimental"))
	})

	t.Run("NoOverrideStorage", func(t *testing.T) {
		t.Parallel()
		engine := newTestEngine(t, flags)
		assert.Nil(t, engine.Overrides())
		assert.False(t, engine.IsEnabled(devCtx, "F"))
	})
}

func TestEngineEnabledFeatures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	engine := newTestEngine(t, []feature.Flag{
		{Name: "deep-research", Definition: feature.Bool(true)},
		{Name: "legacy-export", Definition: feature.Bool(false)},
		{Name: "chat-model", Definition: feature.Version("gpt-4o")},
		{Name: "marketplace", Definition: feature.Advanced{Enabled: true, RolloutPercentage: feature.Percent(0)}},
		{Name: "timeline", Definition: feature.Advanced{Enabled: true, UserWhitelist: []string{"vip@x"}, RolloutPercentage: feature.Percent(0)}},
		{Name: "dev-tools", Definition: feature.Advanced{Enabled: true, Environments: []environment.Environment{environment.Development}}},
	}, feature.WithEnvironment(environment.Production))

	assert.Equal(t,
		[]string{"deep-research", "chat-model", "marketplace", "timeline"},
		engine.EnabledFeatures(ctx))
	assert.Equal(t,
		[]string{"deep-research", "chat-model", "timeline"},
		engine.EnabledFeaturesFor(ctx, "vip@x"))
	assert.Equal(t,
		[]string{"deep-research", "chat-model"},
		engine.EnabledFeaturesFor(ctx, "user-001"))
}

func TestEngineIntrospection(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, []feature.Flag{rollout(40)})
	assert.Equal(t, feature.Bucket("user-001", "F"), engine.UserRolloutBucket("user-001", "F"))
	assert.Equal(t, feature.KindAdvanced, engine.Metadata("F").Kind)
	assert.Equal(t, feature.KindUnknown, engine.Metadata("nope").Kind)
	assert.Equal(t, []string{"F"}, engine.Registry().Names())
}

func TestEngineHooks(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		decisions []feature.Decision
	)
	engine := newTestEngine(t, []feature.Flag{rollout(100)},
		feature.WithEvaluationHook(func(_ context.Context, d feature.Decision) {
			mu.Lock()
			defer mu.Unlock()
			decisions = append(decisions, d)
		}),
		feature.WithEvaluationHook(nil),
	)

	engine.IsEnabledFor(context.Background(), "F", "user-001")
	engine.IsEnabled(context.Background(), "missing")

	require.Len(t, decisions, 2)
	assert.Equal(t, "F", decisions[0].Feature)
	assert.Equal(t, feature.ReasonRollout, decisions[0].Reason)
	assert.Equal(t, "missing", decisions[1].Feature)
	assert.Equal(t, feature.ReasonUnknown, decisions[1].Reason)
}

func TestEngineDebugLog(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	engine := newTestEngine(t, []feature.Flag{rollout(100)},
		feature.WithLogger(slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)

	engine.IsEnabledFor(context.Background(), "F", "user-001")
	engine.IsEnabled(context.Background(), "F")

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"user_id":"user-001"`)
	assert.Contains(t, lines[0], `"reason":"rollout"`)
	assert.NotContains(t, lines[1], "user_id")
	assert.Contains(t, lines[1], `"reason":"no_user"`)
}

func TestEngineIdempotence(t *testing.T) {
	t.Parallel()

	storage := feature.NewMemoryStorage()
	engine := newTestEngine(t, []feature.Flag{rollout(50)}, feature.WithOverrideStorage(storage))
	ctx := environment.WithContext(context.Background(), environment.Development)

	before, err := storage.Get(ctx, feature.OverridesKey)
	require.NoError(t, err)

	first := engine.IsEnabledFor(ctx, "F", "user-007")
	for range 1000 {
		require.Equal(t, first, engine.IsEnabledFor(ctx, "F", "user-007"))
	}

	after, err := storage.Get(ctx, feature.OverridesKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, engine.Overrides().All(ctx))
}

func TestEngineConcurrentEvaluation(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, []feature.Flag{rollout(50)})
	users := sampleUsers(100)
	expected := make(map[string]bool, len(users))
	for _, u := range users {
		expected[u] = engine.IsEnabledFor(context.Background(), "F", u)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, u := range users {
				assert.Equal(t, expected[u], engine.IsEnabledFor(context.Background(), "F", u))
			}
		}()
	}
	wg.Wait()
}
