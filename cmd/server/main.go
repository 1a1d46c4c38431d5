// Spyglass polls price, news, fundamentals, and technical data for a tracked
// symbol universe from unreliable rate-limited upstreams and persists
// normalized rows into a local market database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/spyglass/internal/backup"
	"github.com/aristath/spyglass/internal/clients/dailybars"
	"github.com/aristath/spyglass/internal/clients/fundamentals"
	"github.com/aristath/spyglass/internal/clients/insight"
	"github.com/aristath/spyglass/internal/clients/marketfeed"
	"github.com/aristath/spyglass/internal/clients/newsfeed"
	"github.com/aristath/spyglass/internal/config"
	"github.com/aristath/spyglass/internal/database"
	"github.com/aristath/spyglass/internal/indexer"
	"github.com/aristath/spyglass/internal/maintenance"
	"github.com/aristath/spyglass/internal/prefetch"
	"github.com/aristath/spyglass/internal/ratelimit"
	"github.com/aristath/spyglass/internal/sentiment"
	"github.com/aristath/spyglass/internal/server"
	"github.com/aristath/spyglass/internal/store"
	"github.com/aristath/spyglass/internal/universe"
	"github.com/aristath/spyglass/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Msg("Starting Spyglass")

	db, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "market.db"),
		Name: "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	repo := store.NewRepository(db.Conn(), log)

	loader := universe.NewLoader(db.Conn(), log)
	symbols, err := loader.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load symbol universe")
	}
	if len(symbols) == 0 {
		log.Warn().Msg("Symbol universe is empty; seed the symbols table")
	}

	limiter := ratelimit.New(cfg.Providers.RequestsPerSecond, cfg.Providers.Burst, log)

	marketClient := marketfeed.NewClient(cfg.Providers.MarketfeedURL, log)
	dailyBarsClient := dailybars.NewClient(cfg.Providers.DailyBarsURL, log)
	newsClient := newsfeed.NewClient(cfg.Providers.NewsfeedURL, cfg.Providers.NewsfeedAPIKey, log)
	fundamentalsClient := fundamentals.NewClient(cfg.Providers.FundamentalsURL, log)
	insightAlpha := insight.NewClient(string(prefetch.JobTypeInsightAlpha), cfg.Providers.InsightAlphaURL, log)
	insightBeta := insight.NewClient(string(prefetch.JobTypeInsightBeta), cfg.Providers.InsightBetaURL, log)

	var idx prefetch.Indexer
	if cfg.Indexing.Enabled {
		idx = indexer.NewClient(cfg.Indexing.URL, log)
	}
	scorer := sentiment.NewScorer()

	jobs := prefetch.NewStore(cfg.Prefetch.MaxAttempts, log)
	resolver := universe.NewResolver()
	if err := prefetch.BuildQueues(jobs, symbols, resolver, cfg.Prefetch, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to build job queues")
	}

	stats := prefetch.NewStats()
	dispatcher := prefetch.NewDispatcher(jobs, stats, prefetch.DispatcherConfig{
		MaxConcurrentTypes: cfg.Prefetch.MaxConcurrentTypes,
		BaseRetryDelay:     cfg.Prefetch.BaseRetryDelay,
		BackoffMultiplier:  cfg.Prefetch.BackoffMultiplier,
		MaxBackoff:         cfg.Prefetch.MaxBackoff,
	}, log)

	dispatcher.RegisterExecutor(prefetch.JobTypeQuotes, prefetch.NewQuotesExecutor(
		marketClient, dailyBarsClient, limiter, repo,
		cfg.Prefetch.ItemDelay, cfg.Prefetch.ChartFallbackEnabled, cfg.Prefetch.DailyBarFallbackEnabled, log))
	dispatcher.RegisterExecutor(prefetch.JobTypeNews, prefetch.NewNewsExecutor(
		newsClient, limiter, repo, scorer, idx, cfg.Prefetch.ItemDelay, log))
	dispatcher.RegisterExecutor(prefetch.JobTypeFundamentals, prefetch.NewFundamentalsExecutor(
		fundamentalsClient, limiter, repo, cfg.Prefetch.ItemDelay, log))
	dispatcher.RegisterExecutor(prefetch.JobTypeInsightAlpha, prefetch.NewInsightExecutor(
		insightAlpha, insightAlpha.Name(), prefetch.InsightAlpha, limiter, repo, cfg.Prefetch.ItemDelay, log))
	dispatcher.RegisterExecutor(prefetch.JobTypeInsightBeta, prefetch.NewInsightExecutor(
		insightBeta, insightBeta.Name(), prefetch.InsightBeta, limiter, repo, cfg.Prefetch.ItemDelay, log))

	scheduler := prefetch.NewScheduler(dispatcher, prefetch.Schedules(cfg.Prefetch), cfg.Prefetch.InitialDelay, log)
	reporter := prefetch.NewReporter(jobs, dispatcher, stats, limiter, repo, cfg.Prefetch.SnapshotInterval, log)

	backupSvc := backup.NewService(cfg.Backup, cfg.DataDir, log)
	maint := maintenance.NewRunner(repo, jobs, db, backupSvc, cfg.Prefetch.ReadmitCooldown, log)
	if err := maint.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start maintenance schedules")
	}

	scheduler.Start()
	reporter.Start()

	srv := server.New(cfg.Port, db, jobs, scheduler, reporter, log)
	srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	// Stop sources of new work first, then let in-flight jobs drain.
	scheduler.Stop()
	reporter.Stop()
	maint.Stop()
	dispatcher.Stop()
	jobs.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		log.Error().Err(err).Msg("Final WAL checkpoint failed")
	}

	log.Info().Msg("Shutdown complete")
}
