// Package maintenance runs the periodic housekeeping jobs: data retention
// trims, WAL checkpoints, parked-job re-admission, and backup triggers.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/aristath/spyglass/internal/backup"
	"github.com/aristath/spyglass/internal/database"
	"github.com/aristath/spyglass/internal/prefetch"
	"github.com/aristath/spyglass/internal/store"
)

const (
	priceRetention = 2 * 365 * 24 * time.Hour
	snapshotKeep   = 10000
	backupTimeout  = 15 * time.Minute
)

// Runner owns the cron schedule for housekeeping.
type Runner struct {
	cron     *cron.Cron
	repo     *store.Repository
	jobs     *prefetch.Store
	db       *database.DB
	backup   *backup.Service
	cooldown time.Duration
	log      zerolog.Logger
}

// NewRunner creates a new maintenance runner
func NewRunner(repo *store.Repository, jobs *prefetch.Store, db *database.DB, backupSvc *backup.Service, cooldown time.Duration, log zerolog.Logger) *Runner {
	return &Runner{
		cron:     cron.New(cron.WithSeconds()),
		repo:     repo,
		jobs:     jobs,
		db:       db,
		backup:   backupSvc,
		cooldown: cooldown,
		log:      log.With().Str("component", "maintenance").Logger(),
	}
}

// Start registers the schedules and starts the cron loop.
func (r *Runner) Start() error {
	// Hourly: return parked jobs whose cooldown has elapsed.
	if _, err := r.cron.AddFunc("0 0 * * * *", r.readmitParked); err != nil {
		return err
	}

	// Nightly at 03:30: trim old data and checkpoint the WAL.
	if _, err := r.cron.AddFunc("0 30 3 * * *", r.nightlyTrim); err != nil {
		return err
	}

	if r.backup.Enabled() {
		// Daily at 04:15, after the trim has settled.
		if _, err := r.cron.AddFunc("0 15 4 * * *", r.runBackup); err != nil {
			return err
		}
	} else {
		r.log.Info().Msg("Backup not configured, schedule skipped")
	}

	r.cron.Start()
	r.log.Info().Msg("Maintenance schedules started")
	return nil
}

func (r *Runner) readmitParked() {
	if n := r.jobs.ReadmitDropped(r.cooldown); n > 0 {
		r.log.Info().Int("readmitted", n).Msg("Parked jobs returned to their queues")
	}
}

func (r *Runner) nightlyTrim() {
	if deleted, err := r.repo.TrimPriceHistory(priceRetention); err != nil {
		r.log.Error().Err(err).Msg("Price history trim failed")
	} else if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Msg("Old price rows trimmed")
	}

	if deleted, err := r.repo.TrimSnapshots(snapshotKeep); err != nil {
		r.log.Error().Err(err).Msg("Snapshot trim failed")
	} else if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Msg("Old snapshots trimmed")
	}

	if err := r.db.WALCheckpoint("TRUNCATE"); err != nil {
		r.log.Error().Err(err).Msg("WAL checkpoint failed")
	}
}

func (r *Runner) runBackup() {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	// Checkpoint first so the archive contains a consistent main file.
	if err := r.db.WALCheckpoint("TRUNCATE"); err != nil {
		r.log.Error().Err(err).Msg("Pre-backup checkpoint failed")
	}

	if err := r.backup.Run(ctx); err != nil {
		r.log.Error().Err(err).Msg("Backup failed")
	}
}

// Stop halts the cron loop and waits for running jobs to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info().Msg("Maintenance stopped")
}
