package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPYGLASS_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)

	assert.Equal(t, 50, cfg.Prefetch.QuotesBatchSize)
	assert.Equal(t, 2*time.Minute, cfg.Prefetch.QuotesInterval)
	assert.Equal(t, 2, cfg.Prefetch.MaxConcurrentTypes)
	assert.Equal(t, 100*time.Millisecond, cfg.Prefetch.BaseRetryDelay)
	assert.Equal(t, 1.5, cfg.Prefetch.BackoffMultiplier)
	assert.Equal(t, 15*time.Second, cfg.Prefetch.MaxBackoff)
	assert.Equal(t, 8, cfg.Prefetch.MaxAttempts)
	assert.Equal(t, 6*time.Hour, cfg.Prefetch.ReadmitCooldown)
	assert.True(t, cfg.Prefetch.QuotesEnabled)
	assert.True(t, cfg.Prefetch.ChartFallbackEnabled)

	assert.Equal(t, 0.5, cfg.Providers.RequestsPerSecond)
	assert.False(t, cfg.Indexing.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SPYGLASS_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("QUOTES_BATCH_SIZE", "25")
	t.Setenv("QUOTES_INTERVAL", "30s")
	t.Setenv("MAX_CONCURRENT_TYPES", "3")
	t.Setenv("BACKOFF_MULTIPLIER", "2.0")
	t.Setenv("NEWS_ENABLED", "false")
	t.Setenv("NEWSFEED_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 25, cfg.Prefetch.QuotesBatchSize)
	assert.Equal(t, 30*time.Second, cfg.Prefetch.QuotesInterval)
	assert.Equal(t, 3, cfg.Prefetch.MaxConcurrentTypes)
	assert.Equal(t, 2.0, cfg.Prefetch.BackoffMultiplier)
	assert.False(t, cfg.Prefetch.NewsEnabled)
	assert.Equal(t, "secret", cfg.Providers.NewsfeedAPIKey)
}

func TestLoadResolvesDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPYGLASS_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SPYGLASS_DATA_DIR", t.TempDir())
	t.Setenv("PORT", "not-a-number")
	t.Setenv("QUOTES_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8002, cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.Prefetch.QuotesInterval)
}

func TestValidate(t *testing.T) {
	t.Run("rejects a zero concurrency ceiling", func(t *testing.T) {
		t.Setenv("SPYGLASS_DATA_DIR", t.TempDir())
		t.Setenv("MAX_CONCURRENT_TYPES", "0")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects a multiplier below one", func(t *testing.T) {
		t.Setenv("SPYGLASS_DATA_DIR", t.TempDir())
		t.Setenv("BACKOFF_MULTIPLIER", "0.5")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		t.Setenv("SPYGLASS_DATA_DIR", t.TempDir())
		t.Setenv("MAX_ATTEMPTS", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}
