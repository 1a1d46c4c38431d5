package prefetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
)

// providerMarketfeed and providerDailyBars are the rate limiter keys for the
// two quote upstreams.
const (
	providerMarketfeed = "marketfeed"
	providerDailyBars  = "dailybars"
)

// QuotesExecutor fetches current prices for a batch of symbols. It tries one
// batched quote call first, then walks a per-symbol fallback chain for the
// symbols the batch call missed: the chart endpoint of the same provider,
// then the alternate daily-bar provider. The job fails only when every
// symbol in the batch yields nothing.
type QuotesExecutor struct {
	quotes           QuoteProvider
	dailyBars        DailyBarProvider
	limiter          RateLimiter
	sink             Sink
	itemDelay        time.Duration
	chartFallback    bool
	dailyBarFallback bool
	log              zerolog.Logger
}

// NewQuotesExecutor creates a new quotes executor
func NewQuotesExecutor(quotes QuoteProvider, dailyBars DailyBarProvider, limiter RateLimiter, sink Sink, itemDelay time.Duration, chartFallback, dailyBarFallback bool, log zerolog.Logger) *QuotesExecutor {
	return &QuotesExecutor{
		quotes:           quotes,
		dailyBars:        dailyBars,
		limiter:          limiter,
		sink:             sink,
		itemDelay:        itemDelay,
		chartFallback:    chartFallback,
		dailyBarFallback: dailyBarFallback,
		log:              log.With().Str("component", "quotes_executor").Logger(),
	}
}

// Execute runs one quotes job.
func (e *QuotesExecutor) Execute(ctx context.Context, job *Job) error {
	tier := int(job.Priority)

	var batch map[string]domain.Quote
	err := e.limiter.Execute(ctx, providerMarketfeed, tier, func(ctx context.Context) error {
		var qErr error
		batch, qErr = e.quotes.BatchQuotes(ctx, job.Batch)
		return qErr
	})
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("job_id", job.ID).
			Msg("Batch quote call failed, falling back per symbol")
		batch = nil
	}

	persisted := 0
	now := time.Now()

	var missed []string
	for _, id := range job.Batch {
		q, ok := batch[id]
		if !ok {
			missed = append(missed, id)
			continue
		}

		if err := e.persistQuote(job, id, q, now); err != nil {
			e.log.Error().Err(err).Str("symbol", id).Msg("Failed to persist quote")
			continue
		}
		persisted++
	}

	for i, id := range missed {
		if i > 0 && e.itemDelay > 0 {
			select {
			case <-time.After(e.itemDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		bar, err := e.fallbackBar(ctx, id, tier)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", id).Msg("All quote sources failed for symbol")
			continue
		}

		symbol := e.canonical(job, id)
		if err := e.sink.UpsertStock(symbol, ""); err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to upsert stock")
			continue
		}
		if err := e.sink.InsertPriceRow(domain.PriceRowFromBar(symbol, bar)); err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to persist fallback bar")
			continue
		}
		persisted++
	}

	if persisted == 0 && len(job.Batch) > 0 {
		return fmt.Errorf("no quote source produced data for any of %d symbols", len(job.Batch))
	}

	e.log.Info().
		Str("job_id", job.ID).
		Int("persisted", persisted).
		Int("total", len(job.Batch)).
		Msg("Quotes batch processed")
	return nil
}

func (e *QuotesExecutor) persistQuote(job *Job, id string, q domain.Quote, now time.Time) error {
	symbol := e.canonical(job, id)

	if err := e.sink.UpsertStock(symbol, q.Name); err != nil {
		return err
	}

	row := domain.PriceRowFromQuote(q, now)
	row.Symbol = symbol
	return e.sink.InsertPriceRow(row)
}

// fallbackBar walks the per-symbol chain: chart endpoint, then daily bars.
func (e *QuotesExecutor) fallbackBar(ctx context.Context, id string, tier int) (domain.Bar, error) {
	var lastErr error

	if e.chartFallback {
		var bar domain.Bar
		err := e.limiter.Execute(ctx, providerMarketfeed, tier, func(ctx context.Context) error {
			var cErr error
			bar, cErr = e.quotes.Chart(ctx, id)
			return cErr
		})
		if err == nil {
			return bar, nil
		}
		lastErr = err
	}

	if e.dailyBarFallback {
		var bar domain.Bar
		err := e.limiter.Execute(ctx, providerDailyBars, tier, func(ctx context.Context) error {
			var dErr error
			bar, dErr = e.dailyBars.DailyBar(ctx, id)
			return dErr
		})
		if err == nil {
			return bar, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no fallback source enabled")
	}
	return domain.Bar{}, lastErr
}

// canonical maps a provider identifier back to the universe symbol.
func (e *QuotesExecutor) canonical(job *Job, id string) string {
	if s, ok := job.Metadata[id]; ok && s != "" {
		return s
	}
	return id
}
