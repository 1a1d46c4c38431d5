package prefetch

import (
	"context"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/indexer"
)

// Executor runs one job to completion. Implementations must confine side
// effects to the persistence sink, the rate limiter's bookkeeping, and
// optional asynchronous indexing; they hold no state across invocations.
type Executor interface {
	Execute(ctx context.Context, job *Job) error
}

// RateLimiter is the shared admission controller for outbound provider
// calls, keyed by provider name.
type RateLimiter interface {
	Execute(ctx context.Context, provider string, tier int, fn func(context.Context) error) error
}

// Sink is the persistence layer consumed by executors. All writes are
// idempotent (insert-or-replace by primary key).
type Sink interface {
	UpsertStock(symbol, name string) error
	InsertPriceRow(row domain.PriceRow) error
	InsertNewsRow(row domain.NewsRow) error
}

// Indexer forwards documents to the retrieval index, best-effort.
type Indexer interface {
	IndexAsync(namespace string, docs []indexer.Document)
}

// SentimentScorer scores a list of texts, pure function.
type SentimentScorer interface {
	Score(texts []string) float64
}

// QuoteProvider is the primary quotes upstream: one batched call, plus a
// per-symbol chart endpoint used as the first fallback.
type QuoteProvider interface {
	BatchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error)
	Chart(ctx context.Context, symbol string) (domain.Bar, error)
}

// DailyBarProvider is the alternate, lower-fidelity quotes fallback.
type DailyBarProvider interface {
	DailyBar(ctx context.Context, symbol string) (domain.Bar, error)
}

// NewsProvider searches articles by query string.
type NewsProvider interface {
	Search(ctx context.Context, query string) ([]domain.Article, error)
}

// FundamentalsProvider fetches company metrics by provider id.
type FundamentalsProvider interface {
	Fundamentals(ctx context.Context, id string) (domain.Fundamentals, error)
}

// HistoryProvider fetches recent daily bars for technical analysis.
type HistoryProvider interface {
	History(ctx context.Context, symbol string, days int) ([]domain.Bar, error)
}
