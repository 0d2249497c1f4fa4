// Package main is the entry point of the background worker.
//
// The worker runs scheduled jobs against the same store as the API. Today
// that is the daily analytics snapshot; results are listed by
// GET /api/v1/analytics/snapshots.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/learnhub/learning-hub/config"
	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/domain/analytics"
	"github.com/learnhub/learning-hub/internal/infrastructure/messaging"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence"
	"github.com/learnhub/learning-hub/internal/infrastructure/scheduler"
	"github.com/learnhub/learning-hub/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting learning hub worker",
		"env", cfg.App.Environment,
		"timezone", cfg.Scheduler.Timezone,
	)

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled, nothing to do")
		return nil
	}
	if cfg.Store.Backend == config.StoreMemory {
		log.Warn("memory store is private to this process, snapshots will not be visible to the API")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. STORE
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := persistence.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		log.Info("closing store...")
		if err := backend.Close(); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}()
	repos := backend.Repos

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	eventBus := messaging.NewBus(messaging.Options{Async: true, Workers: cfg.Progress.EventWorkers, Logger: log})
	defer func() { _ = eventBus.Close() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	sources := analytics.Sources{
		Users:       repos.Users,
		Courses:     repos.Courses,
		Enrollments: repos.Enrollments,
		Paths:       repos.Paths,
	}
	taker := command.NewTakeAnalyticsSnapshotHandler(sources, repos.Snapshots, eventBus, nil)
	snapshotJob := jobs.NewAnalyticsSnapshotJob(taker, func() bool {
		return cfg.Features.IsEnabled(config.FeatureAnalyticsSnapshots, nil)
	}, log)

	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Location: cfg.Scheduler.Location,
		Timeout:  cfg.Scheduler.JobTimeout,
	})
	if err := sched.Add(snapshotJob, cfg.Scheduler.SnapshotSpec); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. START
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for _, job := range sched.Jobs() {
		log.Info("job scheduled", "job", job.Name, "description", job.Description, "next_run", job.NextRun)
	}

	if cfg.Scheduler.RunOnStart {
		if _, err := sched.Trigger(ctx, snapshotJob.Name()); err != nil {
			log.Warn("initial snapshot failed", "error", err)
		}
	}
	log.Info("worker is running")

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop scheduler gracefully", "error", err)
	}

	runs, failures := sched.Totals()
	log.Info("shutdown completed",
		"executions", runs,
		"failures", failures,
	)
	return nil
}

// setupLogger configures the process-wide slog logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug || strings.EqualFold(cfg.Observability.LogLevel, "debug") {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.IsProduction() || strings.EqualFold(cfg.Observability.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
