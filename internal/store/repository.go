// Package store implements the persistence sink for prefetched market data.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/rs/zerolog"
)

// Repository provides idempotent writes for stocks, prices, and news, plus
// the snapshot history used by the health reporter.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new market data repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
	}
}

// UpsertStock inserts or refreshes the owning stock record for a symbol.
func (r *Repository) UpsertStock(symbol, name string) error {
	query := `
		INSERT INTO stocks (symbol, name, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE stocks.name END,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.Exec(query, symbol, name, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", symbol, err)
	}

	return nil
}

// InsertPriceRow writes a daily price row, replacing any existing row for the
// same {symbol, date}.
func (r *Repository) InsertPriceRow(row domain.PriceRow) error {
	query := `
		INSERT OR REPLACE INTO daily_prices (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var volume interface{}
	if row.Volume != nil {
		volume = *row.Volume
	}

	if _, err := r.db.Exec(query, row.Symbol, row.Date, row.Open, row.High, row.Low, row.Close, volume); err != nil {
		return fmt.Errorf("failed to insert price row for %s@%s: %w", row.Symbol, row.Date, err)
	}

	return nil
}

// InsertNewsRow writes a news (or synthetic insight) row keyed by id.
func (r *Repository) InsertNewsRow(row domain.NewsRow) error {
	query := `
		INSERT OR REPLACE INTO news (id, symbol, title, summary, url, source, sentiment, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		row.ID, row.Symbol, row.Title, row.Summary, row.URL, row.Source,
		row.Sentiment, row.PublishedAt.Unix(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert news row %s: %w", row.ID, err)
	}

	return nil
}

// GetDailyPrices fetches recent price rows for a symbol, newest first.
func (r *Repository) GetDailyPrices(symbol string, limit int) ([]domain.PriceRow, error) {
	query := `
		SELECT symbol, date, open, high, low, close, volume
		FROM daily_prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.PriceRow
	for rows.Next() {
		var p domain.PriceRow
		var volume sql.NullInt64

		if err := rows.Scan(&p.Symbol, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		if volume.Valid {
			p.Volume = &volume.Int64
		}

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}

// CountNewsForSymbol returns the number of stored news rows for a symbol.
func (r *Repository) CountNewsForSymbol(symbol string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM news WHERE symbol = ?`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count news for %s: %w", symbol, err)
	}
	return count, nil
}

// InsertSnapshot appends an encoded health snapshot to the snapshot history.
func (r *Repository) InsertSnapshot(takenAt time.Time, payload []byte) error {
	query := `INSERT INTO snapshots (taken_at, payload) VALUES (?, ?)`
	if _, err := r.db.Exec(query, takenAt.Unix(), payload); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// TrimSnapshots deletes all but the most recent keep snapshots.
func (r *Repository) TrimSnapshots(keep int) (int64, error) {
	query := `
		DELETE FROM snapshots
		WHERE id NOT IN (SELECT id FROM snapshots ORDER BY taken_at DESC LIMIT ?)
	`

	result, err := r.db.Exec(query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to trim snapshots: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// TrimPriceHistory deletes price rows older than the retention window.
func (r *Repository) TrimPriceHistory(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format("2006-01-02")

	result, err := r.db.Exec(`DELETE FROM daily_prices WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to trim price history: %w", err)
	}

	deleted, _ := result.RowsAffected()
	return deleted, nil
}
