// Package indexer forwards article texts to the retrieval index. All calls
// are best-effort: failures are logged and never influence the outcome of
// the job that produced the documents.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// asyncTimeout bounds a detached indexing call so an unresponsive indexer
// cannot accumulate goroutines.
const asyncTimeout = 60 * time.Second

// Document is one text to index under a namespace.
type Document struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Client talks to the retrieval indexer's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new indexer client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("component", "indexer").Logger(),
	}
}

// Index upserts documents into the named namespace.
func (c *Client) Index(ctx context.Context, namespace string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"texts": docs,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal index payload: %w", err)
	}

	requestURL := fmt.Sprintf("%s/index/%s", c.baseURL, namespace)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("index request for %s failed: %w", namespace, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("indexer returned status %d for %s", resp.StatusCode, namespace)
	}

	return nil
}

// IndexAsync detaches the indexing call so the polling loop never blocks on
// the indexer. Errors are logged and dropped.
func (c *Client) IndexAsync(namespace string, docs []Document) {
	if len(docs) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()

		if err := c.Index(ctx, namespace, docs); err != nil {
			c.log.Warn().
				Err(err).
				Str("namespace", namespace).
				Int("docs", len(docs)).
				Msg("Best-effort indexing failed")
		}
	}()
}
