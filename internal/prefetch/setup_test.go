package prefetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/spyglass/internal/config"
	"github.com/aristath/spyglass/internal/universe"
)

func testPrefetchConfig() *config.PrefetchConfig {
	return &config.PrefetchConfig{
		QuotesBatchSize:       2,
		NewsBatchSize:         2,
		FundamentalsBatchSize: 2,
		InsightBatchSize:      2,

		QuotesEnabled:       true,
		NewsEnabled:         true,
		FundamentalsEnabled: true,
		InsightAlphaEnabled: true,
		InsightBetaEnabled:  true,

		MaxConcurrentTypes: 2,
		BaseRetryDelay:     100 * time.Millisecond,
		BackoffMultiplier:  1.5,
		MaxBackoff:         15 * time.Second,
		MaxAttempts:        8,
	}
}

func TestBuildQueues(t *testing.T) {
	symbols := []universe.RawSymbol{
		{Symbol: "AAPL", Name: "Apple Inc", FundamentalsID: "aapl"},
		{Symbol: "BRK.B", Name: "Berkshire Hathaway", QuoteSymbol: "BRK-B"},
		{Symbol: "MSFT", Name: "Microsoft", NewsQuery: "Microsoft Corporation", FundamentalsID: "MSFT"},
	}

	t.Run("builds one queue per enabled type", func(t *testing.T) {
		store := NewStore(8, testLogger())
		require.NoError(t, BuildQueues(store, symbols, universe.NewResolver(), testPrefetchConfig(), testLogger()))

		depths := store.Depths()
		assert.Equal(t, 2, depths[JobTypeQuotes]) // 3 symbols, batch size 2
		assert.Equal(t, 2, depths[JobTypeNews])
		assert.Equal(t, 1, depths[JobTypeFundamentals]) // BRK.B has no fundamentals id
		assert.Equal(t, 2, depths[JobTypeInsightAlpha])
		assert.Equal(t, 2, depths[JobTypeInsightBeta])
	})

	t.Run("resolves provider identifiers with canonical symbol metadata", func(t *testing.T) {
		store := NewStore(8, testLogger())
		require.NoError(t, BuildQueues(store, symbols, universe.NewResolver(), testPrefetchConfig(), testLogger()))

		job, ok := store.Take(JobTypeQuotes)
		require.True(t, ok)
		assert.Equal(t, []string{"AAPL", "BRK-B"}, job.Batch)
		assert.Equal(t, "BRK.B", job.Metadata["BRK-B"])

		job, ok = store.Take(JobTypeFundamentals)
		require.True(t, ok)
		assert.Equal(t, []string{"AAPL", "MSFT"}, job.Batch)
	})

	t.Run("skips disabled types entirely", func(t *testing.T) {
		cfg := testPrefetchConfig()
		cfg.NewsEnabled = false

		store := NewStore(8, testLogger())
		require.NoError(t, BuildQueues(store, symbols, universe.NewResolver(), cfg, testLogger()))

		assert.Equal(t, 0, store.Size(JobTypeNews))
		assert.Equal(t, 2, store.Size(JobTypeQuotes))
	})

	t.Run("a symbol unresolvable for one provider stays in the others", func(t *testing.T) {
		store := NewStore(8, testLogger())
		require.NoError(t, BuildQueues(store, symbols, universe.NewResolver(), testPrefetchConfig(), testLogger()))

		var fundamentalsIDs []string
		for {
			job, ok := store.Take(JobTypeFundamentals)
			if !ok {
				break
			}
			fundamentalsIDs = append(fundamentalsIDs, job.Batch...)
		}
		assert.NotContains(t, fundamentalsIDs, "BRK-B")

		var quoteIDs []string
		for {
			job, ok := store.Take(JobTypeQuotes)
			if !ok {
				break
			}
			quoteIDs = append(quoteIDs, job.Batch...)
		}
		assert.Contains(t, quoteIDs, "BRK-B")
	})
}

func TestSchedules(t *testing.T) {
	cfg := testPrefetchConfig()
	cfg.QuotesInterval = 2 * time.Minute
	cfg.InsightBetaEnabled = false

	schedules := Schedules(cfg)
	require.Len(t, schedules, 5)

	assert.Equal(t, JobTypeQuotes, schedules[0].Type)
	assert.Equal(t, 2*time.Minute, schedules[0].Interval)
	assert.True(t, schedules[0].Enabled)
	assert.False(t, schedules[4].Enabled)
}
