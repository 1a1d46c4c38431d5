package newsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	t.Run("parses articles and sends the api key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/everything", r.URL.Path)
			assert.Equal(t, "Apple Inc", r.URL.Query().Get("q"))
			assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

			_, _ = w.Write([]byte(`{"articles":[
				{
					"title":"Apple beats expectations",
					"description":"Record quarter",
					"url":"https://example.com/a",
					"source":{"name":"Example News"},
					"publishedAt":"2026-08-27T12:00:00Z"
				}
			]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key", zerolog.Nop())
		articles, err := client.Search(context.Background(), "Apple Inc")
		require.NoError(t, err)

		require.Len(t, articles, 1)
		assert.Equal(t, "Apple beats expectations", articles[0].Title)
		assert.Equal(t, "Record quarter", articles[0].Summary)
		assert.Equal(t, "Example News", articles[0].Source)
		assert.Equal(t, 2026, articles[0].PublishedAt.Year())
	})

	t.Run("empty result is valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"articles":[]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "", zerolog.Nop())
		articles, err := client.Search(context.Background(), "Obscure Corp")
		require.NoError(t, err)
		assert.Empty(t, articles)
	})

	t.Run("omits the api key header when unset", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("X-Api-Key"))
			_, _ = w.Write([]byte(`{"articles":[]}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "", zerolog.Nop())
		_, err := client.Search(context.Background(), "anything")
		require.NoError(t, err)
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(server.URL, "bad-key", zerolog.Nop())
		_, err := client.Search(context.Background(), "anything")
		assert.Error(t, err)
	})
}
