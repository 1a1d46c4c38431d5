// Package domain holds the data types shared between provider clients,
// executors, and the persistence layer.
package domain

import "time"

// Quote is a point-in-time price for one symbol.
type Quote struct {
	Symbol string
	Name   string
	Price  float64
}

// Bar is a single OHLCV candle.
type Bar struct {
	Date   string // YYYY-MM-DD
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume *int64
}

// Article is a news item as returned by a news provider.
type Article struct {
	Title       string
	Summary     string
	URL         string
	Source      string
	PublishedAt time.Time
}

// Fundamentals is the metric set returned by the external fundamentals provider.
type Fundamentals struct {
	Name          string
	MarketCap     float64
	PERatio       float64
	DividendYield float64
	EPS           float64
}

// PriceRow is a normalized daily price destined for the persistence sink.
// Quote-only reads set open/high/low/close to the same value.
type PriceRow struct {
	Symbol string
	Date   string // YYYY-MM-DD
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume *int64
}

// NewsRow is a normalized article (or synthetic insight) destined for the
// persistence sink.
type NewsRow struct {
	ID          string
	Symbol      string
	Title       string
	Summary     string
	URL         string
	Source      string
	Sentiment   float64
	PublishedAt time.Time
}

// PriceRowFromQuote normalizes a quote into a flat OHLC row dated today.
func PriceRowFromQuote(q Quote, now time.Time) PriceRow {
	return PriceRow{
		Symbol: q.Symbol,
		Date:   now.UTC().Format("2006-01-02"),
		Open:   q.Price,
		High:   q.Price,
		Low:    q.Price,
		Close:  q.Price,
	}
}

// PriceRowFromBar normalizes an OHLCV candle into a price row.
func PriceRowFromBar(symbol string, b Bar) PriceRow {
	return PriceRow{
		Symbol: symbol,
		Date:   b.Date,
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
	}
}
