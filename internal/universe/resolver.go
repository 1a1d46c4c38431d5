package universe

import (
	"errors"
	"fmt"
	"strings"
)

// Provider identifies the upstream a symbol must be resolved for.
type Provider string

const (
	ProviderQuotes       Provider = "quotes"
	ProviderNews         Provider = "news"
	ProviderFundamentals Provider = "fundamentals"
	ProviderInsight      Provider = "insight"
)

// ErrNotResolvable is returned when a symbol has no identifier for a provider
// and one cannot be derived. Initialization logs and skips such symbols.
var ErrNotResolvable = errors.New("symbol not resolvable for provider")

// Resolver maps raw universe symbols to provider-specific identifiers.
// Resolution is pure; it performs no I/O.
type Resolver struct{}

// NewResolver creates a new symbol resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the identifier the given provider expects for a symbol.
//
// Quotes and insight providers accept the exchange symbol directly, with the
// quote_symbol column as an optional override (e.g. "BRK.B" vs "BRK-B").
// News falls back to the company name, then the symbol, as a query string.
// Fundamentals requires an explicit provider id; there is no safe derivation.
func (r *Resolver) Resolve(raw RawSymbol, provider Provider) (string, error) {
	switch provider {
	case ProviderQuotes, ProviderInsight:
		if raw.QuoteSymbol != "" {
			return raw.QuoteSymbol, nil
		}
		if raw.Symbol != "" {
			return raw.Symbol, nil
		}

	case ProviderNews:
		if raw.NewsQuery != "" {
			return raw.NewsQuery, nil
		}
		if raw.Name != "" {
			return raw.Name, nil
		}
		if raw.Symbol != "" {
			return raw.Symbol, nil
		}

	case ProviderFundamentals:
		if raw.FundamentalsID != "" {
			return strings.ToUpper(raw.FundamentalsID), nil
		}

	default:
		return "", fmt.Errorf("unknown provider %q: %w", provider, ErrNotResolvable)
	}

	return "", fmt.Errorf("%s for %s: %w", raw.Symbol, provider, ErrNotResolvable)
}
