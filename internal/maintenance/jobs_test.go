package maintenance

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/spyglass/internal/backup"
	"github.com/aristath/spyglass/internal/config"
	"github.com/aristath/spyglass/internal/database"
	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/prefetch"
	"github.com/aristath/spyglass/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, *store.Repository, *prefetch.Store) {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "market.db"),
		Name: "test",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	log := zerolog.Nop()
	repo := store.NewRepository(db.Conn(), log)
	jobs := prefetch.NewStore(1, log)
	backupSvc := backup.NewService(&config.BackupConfig{}, t.TempDir(), log)

	return NewRunner(repo, jobs, db, backupSvc, 0, log), repo, jobs
}

func TestReadmitParked(t *testing.T) {
	r, _, jobs := newTestRunner(t)

	require.NoError(t, jobs.Initialize(prefetch.JobTypeQuotes, []string{"AAPL", "MSFT"}, 2, nil))

	// With maxAttempts=1 the first failure parks the job.
	job, ok := jobs.Take(prefetch.JobTypeQuotes)
	require.True(t, ok)
	jobs.RequeueFailure(job, 0)
	require.Equal(t, 0, jobs.Size(prefetch.JobTypeQuotes))

	// Zero cooldown in the test runner re-admits immediately.
	r.readmitParked()
	assert.Equal(t, 1, jobs.Size(prefetch.JobTypeQuotes))
}

func TestNightlyTrim(t *testing.T) {
	r, repo, _ := newTestRunner(t)

	old := time.Now().AddDate(-3, 0, 0).UTC().Format("2006-01-02")
	require.NoError(t, repo.InsertPriceRow(domain.PriceRow{Symbol: "AAPL", Date: old, Close: 100}))
	require.NoError(t, repo.InsertPriceRow(domain.PriceRow{
		Symbol: "AAPL", Date: time.Now().UTC().Format("2006-01-02"), Close: 150,
	}))

	r.nightlyTrim()

	prices, err := repo.GetDailyPrices("AAPL", 10)
	require.NoError(t, err)
	assert.Len(t, prices, 1)
}

func TestBackupDisabledWithoutConfig(t *testing.T) {
	r, _, _ := newTestRunner(t)
	assert.False(t, r.backup.Enabled())
}

func TestRunnerStartStop(t *testing.T) {
	r, _, _ := newTestRunner(t)

	require.NoError(t, r.Start())
	r.Stop()
}
