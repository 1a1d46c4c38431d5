// Package insight implements the technical-signal provider client. Two
// instances are wired at startup (provider A and provider B) pointing at
// different upstreams; both expose the same bar-history shape.
package insight

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

// Client talks to an insight provider's HTTP API.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new insight client for the named provider
func NewClient(name, baseURL string, log zerolog.Logger) *Client {
	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "insight").Str("provider", name).Logger(),
	}
}

// Name returns the provider name used for rate limiting and row attribution.
func (c *Client) Name() string {
	return c.name
}

type historyResponse struct {
	Bars []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume *int64  `json:"volume"`
	} `json:"bars"`
}

// History fetches recent daily bars for one symbol, oldest first.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("days", fmt.Sprintf("%d", days))
	requestURL := fmt.Sprintf("%s/v1/history/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("symbol", symbol).
			Msg("API returned non-200 status")
		return nil, fmt.Errorf("API returned status %d for %s", resp.StatusCode, symbol)
	}

	var parsed historyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse history for %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(parsed.Bars))
	for _, b := range parsed.Bars {
		bars = append(bars, domain.Bar{
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	return bars, nil
}
