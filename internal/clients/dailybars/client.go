// Package dailybars implements the alternate, lower-fidelity daily-bar
// provider used as the last link of the quotes fallback chain.
package dailybars

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

// Client talks to the daily-bar HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new daily-bar client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "dailybars").Logger(),
	}
}

type barResponse struct {
	Date   string  `json:"date"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume *int64  `json:"v"`
}

// DailyBar fetches the latest end-of-day candle for one symbol.
func (c *Client) DailyBar(ctx context.Context, symbol string) (domain.Bar, error) {
	requestURL := fmt.Sprintf("%s/v1/daily/%s", c.baseURL, url.PathEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("daily bar request for %s failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("symbol", symbol).
			Msg("API returned non-200 status")
		return domain.Bar{}, fmt.Errorf("API returned status %d for %s", resp.StatusCode, symbol)
	}

	var parsed barResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Bar{}, fmt.Errorf("failed to parse daily bar for %s: %w", symbol, err)
	}

	return domain.Bar{
		Date:   parsed.Date,
		Open:   parsed.Open,
		High:   parsed.High,
		Low:    parsed.Low,
		Close:  parsed.Close,
		Volume: parsed.Volume,
	}, nil
}
