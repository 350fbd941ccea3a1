package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		original, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, original)
			}
		})
	}
}

func TestLoad_DefaultsAppliedWhenUnset(t *testing.T) {
	clearEnv(t, "LISTEN_PORT", "MAX_CONCURRENCY", "DEFAULT_BATCH_MIN_DELAY_MS", "DEFAULT_BATCH_MAX_DELAY_MS")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.ListenPort)
	assert.Equal(t, 10, cfg.Pool.MaxConcurrency)
	assert.Equal(t, 200, cfg.Batch.MinDelayMs)
	assert.Equal(t, 1000, cfg.Batch.MaxDelayMs)
}

func TestLoad_EnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("LISTEN_PORT", "9999")
	t.Setenv("DEFAULT_MODE", "browser")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.ListenPort)
	assert.Equal(t, "browser", cfg.Defaults.Mode)
}

func TestLoad_RejectsInvertedBatchDelayWindow(t *testing.T) {
	t.Setenv("DEFAULT_BATCH_MIN_DELAY_MS", "1000")
	t.Setenv("DEFAULT_BATCH_MAX_DELAY_MS", "200")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_DerivesNavTimeoutFromBrowserSeconds(t *testing.T) {
	t.Setenv("PLAYWRIGHT_NAVIGATION_TIMEOUT_SECS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Browser.NavigationTimeoutSecs)
	assert.Equal(t, int64(7e9), cfg.Defaults.NavTimeout.Nanoseconds())
}
