package prefetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/spyglass/internal/domain"
)

func quotesJob(batch []string, metadata map[string]string) *Job {
	return NewJob(JobTypeQuotes, 0, batch, metadata)
}

func newQuotesTestExecutor(quotes *fakeQuotes, daily *fakeDailyBars, sink *recordingSink, limiter *passLimiter) *QuotesExecutor {
	return NewQuotesExecutor(quotes, daily, limiter, sink, 0, true, true, testLogger())
}

func TestQuotesExecutor(t *testing.T) {
	t.Run("persists batch quotes under canonical symbols", func(t *testing.T) {
		quotes := &fakeQuotes{batch: map[string]domain.Quote{
			"AAPL":  {Symbol: "AAPL", Name: "Apple Inc", Price: 150},
			"BRK-B": {Symbol: "BRK-B", Name: "Berkshire Hathaway", Price: 420},
		}}
		sink := newRecordingSink()
		limiter := &passLimiter{}
		ex := newQuotesTestExecutor(quotes, &fakeDailyBars{}, sink, limiter)

		job := quotesJob([]string{"AAPL", "BRK-B"}, map[string]string{"BRK-B": "BRK.B"})
		require.NoError(t, ex.Execute(context.Background(), job))

		assert.ElementsMatch(t, []string{"AAPL", "BRK.B"}, sink.priceSymbols())
		assert.Equal(t, "Apple Inc", sink.stocks["AAPL"])
		assert.Equal(t, "Berkshire Hathaway", sink.stocks["BRK.B"])

		// One batched call, no per-symbol fallbacks.
		assert.Equal(t, 1, limiter.calls(providerMarketfeed))
		assert.Equal(t, 0, limiter.calls(providerDailyBars))

		row := sink.prices()[0]
		assert.Equal(t, row.Open, row.Close)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), row.Date)
	})

	t.Run("missed symbols fall back to the chart endpoint", func(t *testing.T) {
		quotes := &fakeQuotes{
			batch:  map[string]domain.Quote{"AAPL": {Symbol: "AAPL", Price: 150}},
			charts: map[string]domain.Bar{"MSFT": {Date: "2026-08-27", Open: 410, High: 415, Low: 408, Close: 412}},
		}
		sink := newRecordingSink()
		limiter := &passLimiter{}
		ex := newQuotesTestExecutor(quotes, &fakeDailyBars{}, sink, limiter)

		require.NoError(t, ex.Execute(context.Background(), quotesJob([]string{"AAPL", "MSFT"}, nil)))

		assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, sink.priceSymbols())
		assert.Equal(t, 2, limiter.calls(providerMarketfeed)) // batch + one chart
	})

	t.Run("chart failure falls through to the daily-bar provider", func(t *testing.T) {
		quotes := &fakeQuotes{batch: map[string]domain.Quote{}, chartErr: errUpstream}
		daily := &fakeDailyBars{bars: map[string]domain.Bar{
			"AAPL": {Date: "2026-08-27", Open: 149, High: 151, Low: 148, Close: 150},
		}}
		sink := newRecordingSink()
		limiter := &passLimiter{}
		ex := newQuotesTestExecutor(quotes, daily, sink, limiter)

		require.NoError(t, ex.Execute(context.Background(), quotesJob([]string{"AAPL"}, nil)))

		require.Len(t, sink.prices(), 1)
		assert.Equal(t, 150.0, sink.prices()[0].Close)
		assert.Equal(t, 1, limiter.calls(providerDailyBars))
	})

	t.Run("batch call failure still recovers every symbol per fallback", func(t *testing.T) {
		quotes := &fakeQuotes{
			batchErr: errUpstream,
			charts: map[string]domain.Bar{
				"AAPL": {Date: "2026-08-27", Close: 150},
				"MSFT": {Date: "2026-08-27", Close: 412},
			},
		}
		sink := newRecordingSink()
		ex := newQuotesTestExecutor(quotes, &fakeDailyBars{}, sink, &passLimiter{})

		require.NoError(t, ex.Execute(context.Background(), quotesJob([]string{"AAPL", "MSFT"}, nil)))
		assert.Len(t, sink.prices(), 2)
	})

	t.Run("fails only when every symbol yields nothing", func(t *testing.T) {
		quotes := &fakeQuotes{batchErr: errUpstream, chartErr: errUpstream}
		daily := &fakeDailyBars{err: errUpstream}
		sink := newRecordingSink()
		ex := newQuotesTestExecutor(quotes, daily, sink, &passLimiter{})

		err := ex.Execute(context.Background(), quotesJob([]string{"AAPL", "MSFT"}, nil))
		require.Error(t, err)
		assert.Empty(t, sink.prices())
	})

	t.Run("one recovered symbol is enough to succeed", func(t *testing.T) {
		quotes := &fakeQuotes{
			batchErr: errUpstream,
			charts:   map[string]domain.Bar{"AAPL": {Date: "2026-08-27", Close: 150}},
		}
		daily := &fakeDailyBars{err: errUpstream}
		sink := newRecordingSink()
		ex := newQuotesTestExecutor(quotes, daily, sink, &passLimiter{})

		require.NoError(t, ex.Execute(context.Background(), quotesJob([]string{"AAPL", "MSFT"}, nil)))
		assert.Len(t, sink.prices(), 1)
	})

	t.Run("disabled fallbacks are never called", func(t *testing.T) {
		quotes := &fakeQuotes{batch: map[string]domain.Quote{}}
		daily := &fakeDailyBars{bars: map[string]domain.Bar{"AAPL": {Date: "2026-08-27", Close: 150}}}
		sink := newRecordingSink()
		limiter := &passLimiter{}
		ex := NewQuotesExecutor(quotes, daily, limiter, sink, 0, false, false, testLogger())

		err := ex.Execute(context.Background(), quotesJob([]string{"AAPL"}, nil))
		require.Error(t, err)
		assert.Equal(t, 1, limiter.calls(providerMarketfeed)) // batch only
		assert.Equal(t, 0, limiter.calls(providerDailyBars))
	})

	t.Run("passes the job's priority tier to the limiter", func(t *testing.T) {
		quotes := &fakeQuotes{batch: map[string]domain.Quote{"AAPL": {Symbol: "AAPL", Price: 1}}}
		limiter := &passLimiter{}
		ex := newQuotesTestExecutor(quotes, &fakeDailyBars{}, newRecordingSink(), limiter)

		require.NoError(t, ex.Execute(context.Background(), quotesJob([]string{"AAPL"}, nil)))
		require.Len(t, limiter.tiers, 1)
		assert.Equal(t, 1, limiter.tiers[0])
	})
}
