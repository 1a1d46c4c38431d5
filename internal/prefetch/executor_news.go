package prefetch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/indexer"
)

const providerNewsfeed = "newsfeed"

// NewsExecutor searches articles per query in the batch, scores sentiment,
// and persists normalized rows. A query returning zero articles is a valid
// outcome. Failures are isolated per query; the job fails only when every
// query in the batch errors.
type NewsExecutor struct {
	news      NewsProvider
	limiter   RateLimiter
	sink      Sink
	scorer    SentimentScorer
	indexer   Indexer // nil when index forwarding is disabled
	itemDelay time.Duration
	log       zerolog.Logger
}

// NewNewsExecutor creates a new news executor
func NewNewsExecutor(news NewsProvider, limiter RateLimiter, sink Sink, scorer SentimentScorer, idx Indexer, itemDelay time.Duration, log zerolog.Logger) *NewsExecutor {
	return &NewsExecutor{
		news:      news,
		limiter:   limiter,
		sink:      sink,
		scorer:    scorer,
		indexer:   idx,
		itemDelay: itemDelay,
		log:       log.With().Str("component", "news_executor").Logger(),
	}
}

// Execute runs one news job.
func (e *NewsExecutor) Execute(ctx context.Context, job *Job) error {
	tier := int(job.Priority)
	failed := 0

	for i, query := range job.Batch {
		if i > 0 && e.itemDelay > 0 {
			select {
			case <-time.After(e.itemDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var articles []domain.Article
		err := e.limiter.Execute(ctx, providerNewsfeed, tier, func(ctx context.Context) error {
			var sErr error
			articles, sErr = e.news.Search(ctx, query)
			return sErr
		})
		if err != nil {
			failed++
			e.log.Warn().Err(err).Str("query", query).Msg("News search failed")
			continue
		}

		symbol := query
		if s, ok := job.Metadata[query]; ok && s != "" {
			symbol = s
		}
		e.persistArticles(symbol, articles)
	}

	if failed == len(job.Batch) && len(job.Batch) > 0 {
		return fmt.Errorf("all %d news queries failed", len(job.Batch))
	}
	return nil
}

func (e *NewsExecutor) persistArticles(symbol string, articles []domain.Article) {
	if len(articles) == 0 {
		return
	}

	var docs []indexer.Document
	stored := 0

	for _, a := range articles {
		score := e.scorer.Score([]string{a.Title, a.Summary})

		row := domain.NewsRow{
			// Deterministic id so re-polling the same article stays idempotent.
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(a.URL)).String(),
			Symbol:      symbol,
			Title:       a.Title,
			Summary:     a.Summary,
			URL:         a.URL,
			Source:      a.Source,
			Sentiment:   score,
			PublishedAt: a.PublishedAt,
		}

		if err := e.sink.InsertNewsRow(row); err != nil {
			e.log.Error().Err(err).Str("url", a.URL).Msg("Failed to persist article")
			continue
		}
		stored++

		docs = append(docs, indexer.Document{
			Text: a.Title + "\n" + a.Summary,
			Metadata: map[string]string{
				"symbol":    symbol,
				"url":       a.URL,
				"source":    a.Source,
				"date":      a.PublishedAt.UTC().Format("2006-01-02"),
				"sentiment": fmt.Sprintf("%.3f", score),
			},
		})
	}

	if e.indexer != nil && len(docs) > 0 {
		e.indexer.IndexAsync("news", docs)
	}

	e.log.Debug().
		Str("symbol", symbol).
		Int("articles", stored).
		Msg("Articles persisted")
}
