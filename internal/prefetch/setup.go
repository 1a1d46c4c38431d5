package prefetch

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/config"
	"github.com/aristath/spyglass/internal/universe"
)

// providerFor maps a job type to the universe resolver's provider key.
func providerFor(t JobType) universe.Provider {
	switch t {
	case JobTypeQuotes:
		return universe.ProviderQuotes
	case JobTypeNews:
		return universe.ProviderNews
	case JobTypeFundamentals:
		return universe.ProviderFundamentals
	default:
		return universe.ProviderInsight
	}
}

func batchSizeFor(t JobType, cfg *config.PrefetchConfig) int {
	switch t {
	case JobTypeQuotes:
		return cfg.QuotesBatchSize
	case JobTypeNews:
		return cfg.NewsBatchSize
	case JobTypeFundamentals:
		return cfg.FundamentalsBatchSize
	default:
		return cfg.InsightBatchSize
	}
}

func enabledFor(t JobType, cfg *config.PrefetchConfig) bool {
	switch t {
	case JobTypeQuotes:
		return cfg.QuotesEnabled
	case JobTypeNews:
		return cfg.NewsEnabled
	case JobTypeFundamentals:
		return cfg.FundamentalsEnabled
	case JobTypeInsightAlpha:
		return cfg.InsightAlphaEnabled
	default:
		return cfg.InsightBetaEnabled
	}
}

// Schedules builds the scheduler's timer table from config.
func Schedules(cfg *config.PrefetchConfig) []TypeSchedule {
	return []TypeSchedule{
		{Type: JobTypeQuotes, Interval: cfg.QuotesInterval, Enabled: cfg.QuotesEnabled},
		{Type: JobTypeNews, Interval: cfg.NewsInterval, Enabled: cfg.NewsEnabled},
		{Type: JobTypeFundamentals, Interval: cfg.FundamentalsInterval, Enabled: cfg.FundamentalsEnabled},
		{Type: JobTypeInsightAlpha, Interval: cfg.InsightAlphaInterval, Enabled: cfg.InsightAlphaEnabled},
		{Type: JobTypeInsightBeta, Interval: cfg.InsightBetaInterval, Enabled: cfg.InsightBetaEnabled},
	}
}

// BuildQueues resolves the symbol universe once per enabled job type and
// initializes the store's queues. A symbol with no identifier for a provider
// is logged and skipped for that type only; job metadata maps each resolved
// identifier back to its canonical symbol for persistence.
func BuildQueues(store *Store, symbols []universe.RawSymbol, resolver *universe.Resolver, cfg *config.PrefetchConfig, log zerolog.Logger) error {
	log = log.With().Str("component", "queue_setup").Logger()

	for _, t := range AllJobTypes() {
		if !enabledFor(t, cfg) {
			log.Info().Str("job_type", string(t)).Msg("Job type disabled, queue not built")
			continue
		}

		provider := providerFor(t)
		identifiers := make([]string, 0, len(symbols))
		metadata := make(map[string]string, len(symbols))
		skipped := 0

		for _, raw := range symbols {
			id, err := resolver.Resolve(raw, provider)
			if err != nil {
				if errors.Is(err, universe.ErrNotResolvable) {
					skipped++
					log.Debug().
						Str("symbol", raw.Symbol).
						Str("job_type", string(t)).
						Msg("Symbol not resolvable, skipped")
					continue
				}
				return fmt.Errorf("failed to resolve %s for %s: %w", raw.Symbol, t, err)
			}

			identifiers = append(identifiers, id)
			metadata[id] = raw.Symbol
		}

		if skipped > 0 {
			log.Warn().
				Str("job_type", string(t)).
				Int("skipped", skipped).
				Msg("Symbols excluded from queue")
		}

		if err := store.Initialize(t, identifiers, batchSizeFor(t, cfg), metadata); err != nil {
			return err
		}
	}

	return nil
}
