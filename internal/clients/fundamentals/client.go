// Package fundamentals implements the external fundamentals provider client.
package fundamentals

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

// Client talks to the fundamentals HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new fundamentals client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "fundamentals").Logger(),
	}
}

type metricsResponse struct {
	Name          string  `json:"companyName"`
	MarketCap     float64 `json:"marketCap"`
	PERatio       float64 `json:"peRatio"`
	DividendYield float64 `json:"dividendYield"`
	EPS           float64 `json:"eps"`
}

// Fundamentals fetches the current metric set for one provider id.
func (c *Client) Fundamentals(ctx context.Context, id string) (domain.Fundamentals, error) {
	requestURL := fmt.Sprintf("%s/stable/metrics/%s", c.baseURL, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return domain.Fundamentals{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Fundamentals{}, fmt.Errorf("fundamentals request for %s failed: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Fundamentals{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("id", id).
			Msg("API returned non-200 status")
		return domain.Fundamentals{}, fmt.Errorf("API returned status %d for %s", resp.StatusCode, id)
	}

	var parsed metricsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Fundamentals{}, fmt.Errorf("failed to parse fundamentals for %s: %w", id, err)
	}

	return domain.Fundamentals{
		Name:          parsed.Name,
		MarketCap:     parsed.MarketCap,
		PERatio:       parsed.PERatio,
		DividendYield: parsed.DividendYield,
		EPS:           parsed.EPS,
	}, nil
}
