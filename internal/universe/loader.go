// Package universe loads the tracked symbol set and resolves raw symbols to
// provider-specific identifiers.
package universe

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// RawSymbol is one entry of the tracked symbol universe as stored in the
// symbols table. Provider-specific identifier columns may be empty; the
// Resolver decides whether they can be derived from the primary symbol.
type RawSymbol struct {
	Symbol         string
	Name           string
	QuoteSymbol    string
	NewsQuery      string
	FundamentalsID string
}

// Loader reads the symbol universe from the market database.
type Loader struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLoader creates a new universe loader
func NewLoader(db *sql.DB, log zerolog.Logger) *Loader {
	return &Loader{
		db:  db,
		log: log.With().Str("component", "universe_loader").Logger(),
	}
}

// Load returns all enabled symbols in deterministic order.
func (l *Loader) Load() ([]RawSymbol, error) {
	query := `
		SELECT symbol, name, quote_symbol, news_query, fundamentals_id
		FROM symbols
		WHERE enabled = 1
		ORDER BY symbol
	`

	rows, err := l.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol universe: %w", err)
	}
	defer rows.Close()

	var symbols []RawSymbol
	for rows.Next() {
		var s RawSymbol
		if err := rows.Scan(&s.Symbol, &s.Name, &s.QuoteSymbol, &s.NewsQuery, &s.FundamentalsID); err != nil {
			return nil, fmt.Errorf("failed to scan symbol row: %w", err)
		}
		symbols = append(symbols, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol universe: %w", err)
	}

	l.log.Info().Int("count", len(symbols)).Msg("Symbol universe loaded")
	return symbols, nil
}
