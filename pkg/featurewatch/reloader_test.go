package featurewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restorelab/flagkit/pkg/feature"
	"github.com/restorelab/flagkit/pkg/featurewatch"
)

func build(path string) (*feature.Engine, error) {
	reg, err := feature.LoadRegistryFile(path)
	if err != nil {
		return nil, err
	}
	return feature.NewEngine(reg)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestNewFailsOnInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "features.yaml")
	writeFile(t, path, "broken: [\n")

	_, err := featurewatch.New(path, build)
	require.ErrorIs(t, err, featurewatch.ErrBuild)
}

func TestReloaderPicksUpChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "features.yaml")
	writeFile(t, path, "beta: false\n")

	r, err := featurewatch.New(path, build, featurewatch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, r.Engine().IsEnabled(context.Background(), "beta"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Rewrite until the watcher has registered and the change is observed.
	require.Eventually(t, func() bool {
		writeFile(t, path, "beta: true\n")
		return r.Engine().IsEnabled(context.Background(), "beta")
	}, 5*time.Second, 100*time.Millisecond)
	assert.Positive(t, r.Reloads())
}

func TestReloaderKeepsPreviousOnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "features.yaml")
	writeFile(t, path, "beta: true\n")

	r, err := featurewatch.New(path, build, featurewatch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	first := r.Engine()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	writeFile(t, path, "beta: [\n")
	time.Sleep(300 * time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Same(t, first, r.Engine())
	assert.Zero(t, r.Reloads())
}
