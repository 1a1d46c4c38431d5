// Package marketfeed implements the primary quotes provider client: batched
// realtime quotes plus a per-symbol chart endpoint used as the first
// fallback when the batch call fails.
package marketfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/spyglass/internal/domain"
	"github.com/rs/zerolog"
)

// Client talks to the marketfeed HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new marketfeed client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "marketfeed").Logger(),
	}
}

type quoteResponse struct {
	Quotes []struct {
		Symbol string  `json:"symbol"`
		Name   string  `json:"shortName"`
		Price  float64 `json:"regularMarketPrice"`
	} `json:"quotes"`
}

// BatchQuotes fetches current quotes for up to a full batch of symbols in a
// single call. Symbols missing from the response are simply absent from the
// returned map.
func (c *Client) BatchQuotes(ctx context.Context, symbols []string) (map[string]domain.Quote, error) {
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	requestURL := fmt.Sprintf("%s/v7/quote?%s", c.baseURL, q.Encode())

	body, err := c.getJSON(ctx, requestURL)
	if err != nil {
		return nil, fmt.Errorf("batch quote request failed: %w", err)
	}

	var parsed quoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse quote response: %w", err)
	}

	quotes := make(map[string]domain.Quote, len(parsed.Quotes))
	for _, q := range parsed.Quotes {
		quotes[q.Symbol] = domain.Quote{
			Symbol: q.Symbol,
			Name:   q.Name,
			Price:  q.Price,
		}
	}

	return quotes, nil
}

type chartResponse struct {
	Symbol string `json:"symbol"`
	Bars   []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume *int64  `json:"volume"`
	} `json:"bars"`
}

// Chart fetches the most recent daily candle for one symbol.
func (c *Client) Chart(ctx context.Context, symbol string) (domain.Bar, error) {
	requestURL := fmt.Sprintf("%s/v8/chart/%s?range=1d&interval=1d", c.baseURL, url.PathEscape(symbol))

	body, err := c.getJSON(ctx, requestURL)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("chart request for %s failed: %w", symbol, err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Bar{}, fmt.Errorf("failed to parse chart response for %s: %w", symbol, err)
	}

	if len(parsed.Bars) == 0 {
		return domain.Bar{}, fmt.Errorf("chart response for %s contained no bars", symbol)
	}

	last := parsed.Bars[len(parsed.Bars)-1]
	return domain.Bar{
		Date:   last.Date,
		Open:   last.Open,
		High:   last.High,
		Low:    last.Low,
		Close:  last.Close,
		Volume: last.Volume,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("response_body", bodyStr).
			Str("url", requestURL).
			Msg("API returned non-200 status")
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return body, nil
}
