package prefetch

import (
	"context"
	"errors"
	"sync"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/indexer"
)

var errUpstream = errors.New("upstream unavailable")

// passLimiter admits everything immediately and records which providers were
// asked for admission.
type passLimiter struct {
	mu        sync.Mutex
	providers []string
	tiers     []int
}

func (l *passLimiter) Execute(ctx context.Context, provider string, tier int, fn func(context.Context) error) error {
	l.mu.Lock()
	l.providers = append(l.providers, provider)
	l.tiers = append(l.tiers, tier)
	l.mu.Unlock()
	return fn(ctx)
}

func (l *passLimiter) calls(provider string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, p := range l.providers {
		if p == provider {
			n++
		}
	}
	return n
}

// recordingSink captures persisted rows in memory.
type recordingSink struct {
	mu        sync.Mutex
	stocks    map[string]string
	priceRows []domain.PriceRow
	newsRows  []domain.NewsRow
	failWith  error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{stocks: make(map[string]string)}
}

func (s *recordingSink) UpsertStock(symbol, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}
	s.stocks[symbol] = name
	return nil
}

func (s *recordingSink) InsertPriceRow(row domain.PriceRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}
	s.priceRows = append(s.priceRows, row)
	return nil
}

func (s *recordingSink) InsertNewsRow(row domain.NewsRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}
	s.newsRows = append(s.newsRows, row)
	return nil
}

func (s *recordingSink) prices() []domain.PriceRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PriceRow(nil), s.priceRows...)
}

func (s *recordingSink) news() []domain.NewsRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.NewsRow(nil), s.newsRows...)
}

func (s *recordingSink) priceSymbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var symbols []string
	for _, r := range s.priceRows {
		symbols = append(symbols, r.Symbol)
	}
	return symbols
}

type fakeQuotes struct {
	batch    map[string]domain.Quote
	batchErr error
	charts   map[string]domain.Bar
	chartErr error
}

func (f *fakeQuotes) BatchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.batch, nil
}

func (f *fakeQuotes) Chart(ctx context.Context, symbol string) (domain.Bar, error) {
	if f.chartErr != nil {
		return domain.Bar{}, f.chartErr
	}
	bar, ok := f.charts[symbol]
	if !ok {
		return domain.Bar{}, errUpstream
	}
	return bar, nil
}

type fakeDailyBars struct {
	bars map[string]domain.Bar
	err  error
}

func (f *fakeDailyBars) DailyBar(ctx context.Context, symbol string) (domain.Bar, error) {
	if f.err != nil {
		return domain.Bar{}, f.err
	}
	bar, ok := f.bars[symbol]
	if !ok {
		return domain.Bar{}, errUpstream
	}
	return bar, nil
}

type fakeNews struct {
	articles map[string][]domain.Article
	errs     map[string]error
}

func (f *fakeNews) Search(ctx context.Context, query string) ([]domain.Article, error) {
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.articles[query], nil
}

type fakeFundamentals struct {
	metrics map[string]domain.Fundamentals
	errs    map[string]error
}

func (f *fakeFundamentals) Fundamentals(ctx context.Context, id string) (domain.Fundamentals, error) {
	if err, ok := f.errs[id]; ok {
		return domain.Fundamentals{}, err
	}
	m, ok := f.metrics[id]
	if !ok {
		return domain.Fundamentals{}, errUpstream
	}
	return m, nil
}

type fakeHistory struct {
	bars map[string][]domain.Bar
	errs map[string]error
}

func (f *fakeHistory) History(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return f.bars[symbol], nil
}

type fakeIndexer struct {
	mu   sync.Mutex
	docs map[string][]indexer.Document
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: make(map[string][]indexer.Document)}
}

func (f *fakeIndexer) IndexAsync(namespace string, docs []indexer.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[namespace] = append(f.docs[namespace], docs...)
}

func (f *fakeIndexer) indexed(namespace string) []indexer.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]indexer.Document(nil), f.docs[namespace]...)
}

type fixedScorer struct {
	score float64
}

func (f *fixedScorer) Score(texts []string) float64 {
	return f.score
}
