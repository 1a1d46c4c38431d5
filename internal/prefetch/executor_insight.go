package prefetch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
)

// Indicator parameter sets for the two insight variants.
const (
	historyDays = 90

	rsiPeriod = 14
	smaPeriod = 20

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// InsightVariant selects which indicator set an insight executor computes.
type InsightVariant int

const (
	// InsightAlpha computes RSI and SMA over recent closes.
	InsightAlpha InsightVariant = iota
	// InsightBeta computes MACD.
	InsightBeta
)

// InsightExecutor fetches recent daily bars per symbol, backfills them into
// the price table, and derives a synthetic sentiment row from technical
// indicators. Two instances run against independent providers with different
// indicator sets. Failures are isolated per symbol; the job fails only when
// every symbol in the batch errors.
type InsightExecutor struct {
	provider  HistoryProvider
	name      string // rate limiter key and row source
	variant   InsightVariant
	limiter   RateLimiter
	sink      Sink
	itemDelay time.Duration
	log       zerolog.Logger
}

// NewInsightExecutor creates a new insight executor
func NewInsightExecutor(provider HistoryProvider, name string, variant InsightVariant, limiter RateLimiter, sink Sink, itemDelay time.Duration, log zerolog.Logger) *InsightExecutor {
	return &InsightExecutor{
		provider:  provider,
		name:      name,
		variant:   variant,
		limiter:   limiter,
		sink:      sink,
		itemDelay: itemDelay,
		log:       log.With().Str("component", "insight_executor").Str("provider", name).Logger(),
	}
}

// Execute runs one insight job.
func (e *InsightExecutor) Execute(ctx context.Context, job *Job) error {
	tier := int(job.Priority)
	failed := 0

	for i, id := range job.Batch {
		if i > 0 && e.itemDelay > 0 {
			select {
			case <-time.After(e.itemDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var bars []domain.Bar
		err := e.limiter.Execute(ctx, e.name, tier, func(ctx context.Context) error {
			var hErr error
			bars, hErr = e.provider.History(ctx, id, historyDays)
			return hErr
		})
		if err != nil {
			failed++
			e.log.Warn().Err(err).Str("symbol", id).Msg("History fetch failed")
			continue
		}

		symbol := id
		if s, ok := job.Metadata[id]; ok && s != "" {
			symbol = s
		}

		if err := e.process(symbol, bars); err != nil {
			failed++
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("Insight computation failed")
		}
	}

	if failed == len(job.Batch) && len(job.Batch) > 0 {
		return fmt.Errorf("all %d insight symbols failed", len(job.Batch))
	}
	return nil
}

func (e *InsightExecutor) process(symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("provider returned no history")
	}

	for _, b := range bars {
		if err := e.sink.InsertPriceRow(domain.PriceRowFromBar(symbol, b)); err != nil {
			return fmt.Errorf("failed to backfill bar: %w", err)
		}
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	title, summary, score, err := e.indicators(symbol, closes)
	if err != nil {
		return err
	}

	latest := bars[len(bars)-1]
	row := domain.NewsRow{
		// One synthetic row per symbol, provider, and trading day.
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.name+"/"+symbol+"/"+latest.Date)).String(),
		Symbol:      symbol,
		Title:       title,
		Summary:     summary,
		Source:      e.name,
		Sentiment:   score,
		PublishedAt: time.Now(),
	}
	return e.sink.InsertNewsRow(row)
}

// indicators derives the variant's technical summary from closing prices.
// The sentiment score is clamped to [-1, 1].
func (e *InsightExecutor) indicators(symbol string, closes []float64) (title, summary string, score float64, err error) {
	switch e.variant {
	case InsightAlpha:
		if len(closes) <= smaPeriod {
			return "", "", 0, fmt.Errorf("need more than %d closes, got %d", smaPeriod, len(closes))
		}

		rsi := last(talib.Rsi(closes, rsiPeriod))
		sma := last(talib.Sma(closes, smaPeriod))
		price := closes[len(closes)-1]

		score = clamp((rsi - 50) / 50)
		title = fmt.Sprintf("%s momentum: RSI %.1f", symbol, rsi)
		summary = fmt.Sprintf("RSI(%d)=%.2f SMA(%d)=%.2f close=%.2f", rsiPeriod, rsi, smaPeriod, sma, price)
		return title, summary, score, nil

	case InsightBeta:
		if len(closes) <= macdSlow+macdSignal {
			return "", "", 0, fmt.Errorf("need more than %d closes, got %d", macdSlow+macdSignal, len(closes))
		}

		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		h := last(hist)
		price := closes[len(closes)-1]

		// Normalize the histogram by price so the score is comparable
		// across symbols.
		score = clamp(h / price * 100)
		title = fmt.Sprintf("%s trend: MACD hist %.3f", symbol, h)
		summary = fmt.Sprintf("MACD=%.3f signal=%.3f hist=%.3f close=%.2f", last(macd), last(signal), h, price)
		return title, summary, score, nil
	}

	return "", "", 0, fmt.Errorf("unknown insight variant %d", e.variant)
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
