package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/spyglass/internal/database"
	"github.com/aristath/spyglass/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "market.db"),
		Name: "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestRepositoryUpsertStock(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertStock("AAPL", "Apple Inc"))

	t.Run("updates the name on conflict", func(t *testing.T) {
		require.NoError(t, repo.UpsertStock("AAPL", "Apple Inc."))

		var name string
		require.NoError(t, repo.db.QueryRow(`SELECT name FROM stocks WHERE symbol = ?`, "AAPL").Scan(&name))
		assert.Equal(t, "Apple Inc.", name)
	})

	t.Run("an empty name never clobbers a known one", func(t *testing.T) {
		require.NoError(t, repo.UpsertStock("AAPL", ""))

		var name string
		require.NoError(t, repo.db.QueryRow(`SELECT name FROM stocks WHERE symbol = ?`, "AAPL").Scan(&name))
		assert.Equal(t, "Apple Inc.", name)
	})
}

func TestRepositoryPriceRows(t *testing.T) {
	repo := newTestRepo(t)

	vol := int64(1000)
	rows := []domain.PriceRow{
		{Symbol: "AAPL", Date: "2026-08-25", Open: 148, High: 151, Low: 147, Close: 150, Volume: &vol},
		{Symbol: "AAPL", Date: "2026-08-26", Open: 150, High: 153, Low: 149, Close: 152},
		{Symbol: "AAPL", Date: "2026-08-27", Open: 152, High: 155, Low: 151, Close: 154},
		{Symbol: "MSFT", Date: "2026-08-27", Open: 410, High: 415, Low: 408, Close: 412},
	}
	for _, row := range rows {
		require.NoError(t, repo.InsertPriceRow(row))
	}

	t.Run("returns newest first and honors the limit", func(t *testing.T) {
		prices, err := repo.GetDailyPrices("AAPL", 2)
		require.NoError(t, err)
		require.Len(t, prices, 2)

		assert.Equal(t, "2026-08-27", prices[0].Date)
		assert.Equal(t, "2026-08-26", prices[1].Date)
	})

	t.Run("round-trips an optional volume", func(t *testing.T) {
		prices, err := repo.GetDailyPrices("AAPL", 10)
		require.NoError(t, err)
		require.Len(t, prices, 3)

		assert.Nil(t, prices[0].Volume)
		require.NotNil(t, prices[2].Volume)
		assert.Equal(t, int64(1000), *prices[2].Volume)
	})

	t.Run("same symbol and date replaces the row", func(t *testing.T) {
		require.NoError(t, repo.InsertPriceRow(domain.PriceRow{
			Symbol: "AAPL", Date: "2026-08-27", Open: 152, High: 156, Low: 151, Close: 155,
		}))

		prices, err := repo.GetDailyPrices("AAPL", 1)
		require.NoError(t, err)
		assert.Equal(t, 155.0, prices[0].Close)
	})

	t.Run("unknown symbol yields no rows", func(t *testing.T) {
		prices, err := repo.GetDailyPrices("NOPE", 10)
		require.NoError(t, err)
		assert.Empty(t, prices)
	})
}

func TestRepositoryNewsRows(t *testing.T) {
	repo := newTestRepo(t)

	row := domain.NewsRow{
		ID:          "news-1",
		Symbol:      "AAPL",
		Title:       "Apple beats expectations",
		Summary:     "Record quarter",
		URL:         "https://example.com/a",
		Source:      "example",
		Sentiment:   0.8,
		PublishedAt: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.InsertNewsRow(row))

	count, err := repo.CountNewsForSymbol("AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("same id replaces instead of duplicating", func(t *testing.T) {
		row.Sentiment = -0.2
		require.NoError(t, repo.InsertNewsRow(row))

		count, err := repo.CountNewsForSymbol("AAPL")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("counts are per symbol", func(t *testing.T) {
		count, err := repo.CountNewsForSymbol("MSFT")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestRepositorySnapshots(t *testing.T) {
	repo := newTestRepo(t)

	base := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.InsertSnapshot(base.Add(time.Duration(i)*time.Minute), []byte{byte(i)}))
	}

	deleted, err := repo.TrimSnapshots(2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	var remaining int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&remaining))
	assert.Equal(t, 2, remaining)
}

func TestRepositoryTrimPriceHistory(t *testing.T) {
	repo := newTestRepo(t)

	old := time.Now().AddDate(-3, 0, 0).UTC().Format("2006-01-02")
	recent := time.Now().UTC().Format("2006-01-02")

	require.NoError(t, repo.InsertPriceRow(domain.PriceRow{Symbol: "AAPL", Date: old, Close: 100}))
	require.NoError(t, repo.InsertPriceRow(domain.PriceRow{Symbol: "AAPL", Date: recent, Close: 150}))

	deleted, err := repo.TrimPriceHistory(2 * 365 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	prices, err := repo.GetDailyPrices("AAPL", 10)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, recent, prices[0].Date)
}
