package prefetch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const providerFundamentals = "fundamentals"

// FundamentalsExecutor refreshes company metadata per provider id in the
// batch. Failures are isolated per id; the job fails only when every id in
// the batch errors.
type FundamentalsExecutor struct {
	fundamentals FundamentalsProvider
	limiter      RateLimiter
	sink         Sink
	itemDelay    time.Duration
	log          zerolog.Logger
}

// NewFundamentalsExecutor creates a new fundamentals executor
func NewFundamentalsExecutor(fundamentals FundamentalsProvider, limiter RateLimiter, sink Sink, itemDelay time.Duration, log zerolog.Logger) *FundamentalsExecutor {
	return &FundamentalsExecutor{
		fundamentals: fundamentals,
		limiter:      limiter,
		sink:         sink,
		itemDelay:    itemDelay,
		log:          log.With().Str("component", "fundamentals_executor").Logger(),
	}
}

// Execute runs one fundamentals job.
func (e *FundamentalsExecutor) Execute(ctx context.Context, job *Job) error {
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

		var name string
		err := e.limiter.Execute(ctx, providerFundamentals, tier, func(ctx context.Context) error {
			f, fErr := e.fundamentals.Fundamentals(ctx, id)
			if fErr != nil {
				return fErr
			}
			name = f.Name
			return nil
		})
		if err != nil {
			failed++
			e.log.Warn().Err(err).Str("id", id).Msg("Fundamentals fetch failed")
			continue
		}

		symbol := id
		if s, ok := job.Metadata[id]; ok && s != "" {
			symbol = s
		}

		if err := e.sink.UpsertStock(symbol, name); err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to upsert stock")
		}
	}

	if failed == len(job.Batch) && len(job.Batch) > 0 {
		return fmt.Errorf("all %d fundamentals fetches failed", len(job.Batch))
	}
	return nil
}
