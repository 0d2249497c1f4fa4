// Package main is the entry point of the learning hub REST API.
//
// The server owns the enrollment engine: catalog, enrollments, module and
// video progress, learning paths and analytics all go through the commands
// and queries wired below, on top of one key-value backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/learnhub/learning-hub/config"

	// Application layer
	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/application/eventhandler"
	"github.com/learnhub/learning-hub/internal/application/query"
	"github.com/learnhub/learning-hub/internal/domain/analytics"

	// Infrastructure layer
	"github.com/learnhub/learning-hub/internal/infrastructure/auth"
	"github.com/learnhub/learning-hub/internal/infrastructure/messaging"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence"
	"github.com/learnhub/learning-hub/internal/infrastructure/storage"

	// Interface layer
	httpserver "github.com/learnhub/learning-hub/internal/interface/http"
	"github.com/learnhub/learning-hub/internal/interface/http/handlers"

	// Packages
	"github.com/learnhub/learning-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

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
	log.Info("starting learning hub API",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"store", cfg.Store.Backend,
	)
	apiLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

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
	log.Info("initializing event bus...")
	eventBus := messaging.NewBus(messaging.Options{
		Async:   true,
		Workers: cfg.Progress.EventWorkers,
		Logger:  log,
	})
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	if cfg.Features.IsEnabled(config.FeatureSkillMerge, nil) {
		onCompleted := eventhandler.NewOnCourseCompletedHandler(repos.Users, repos.Courses, backend.Locker, log)
		if err := onCompleted.Register(eventBus); err != nil {
			return fmt.Errorf("failed to register event handler: %w", err)
		}
		log.Info("event handlers registered")
	} else {
		log.Info("skill merge disabled, course completions only update enrollments")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. AUTH
	// ─────────────────────────────────────────────────────────────────────────
	tokens, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. OBJECT STORAGE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var objects *storage.Client
	if cfg.Storage.Enabled() {
		objects, err = storage.NewClient(storage.Config{
			URL:           cfg.Storage.URL,
			APIKey:        cfg.Storage.APIKey,
			Bucket:        cfg.Storage.Bucket,
			FileSizeLimit: cfg.Storage.FileSizeLimit,
			Timeout:       cfg.Storage.Timeout,
			Logger:        apiLog,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			// uploads fail until storage recovers; the catalog keeps working
			log.Warn("failed to ensure storage bucket", "bucket", cfg.Storage.Bucket, "error", err)
		} else {
			log.Info("object storage ready", "bucket", cfg.Storage.Bucket)
		}
	} else {
		log.Info("object storage not configured, uploads disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	authDeps := command.AuthDeps{
		Users:       repos.Users,
		Credentials: repos.Credentials,
		Hasher:      hasher,
		Tokens:      tokens,
		Locker:      backend.Locker,
		Publisher:   eventBus,
	}
	courseDeps := command.CourseDeps{
		Courses:   repos.Courses,
		Locker:    backend.Locker,
		Publisher: eventBus,
	}
	engineDeps := command.EngineDeps{
		Users:       repos.Users,
		Courses:     repos.Courses,
		Enrollments: repos.Enrollments,
		Locker:      backend.Locker,
		Publisher:   eventBus,
	}
	sources := analytics.Sources{
		Users:       repos.Users,
		Courses:     repos.Courses,
		Enrollments: repos.Enrollments,
		Paths:       repos.Paths,
	}

	if cfg.Auth.AdminEmail != "" {
		created, err := command.EnsureAdmin(ctx, authDeps, command.BootstrapAdminCommand{
			Email:    cfg.Auth.AdminEmail,
			Password: cfg.Auth.AdminPassword,
			Name:     cfg.Auth.AdminName,
		})
		if err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
		log.Info("admin account checked", "email", cfg.Auth.AdminEmail, "created", created)
	}

	var uploadMedia *command.UploadMediaHandler
	if objects != nil {
		uploadMedia = command.NewUploadMediaHandler(objects, nil)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	checker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	checker.AddCheck("store", handlers.NewPingCheck(backend))
	if objects != nil {
		checker.AddOptionalCheck("object_storage", handlers.NewBreakerCheck(objects.State))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpServer := httpserver.NewServer(httpserver.ConfigFromApp(cfg.HTTP, cfg.Storage), httpserver.Dependencies{
		Signup:              command.NewSignupHandler(authDeps),
		Login:               command.NewLoginHandler(authDeps),
		UpdateProfile:       command.NewUpdateProfileHandler(repos.Users, backend.Locker, nil),
		CreateCourse:        command.NewCreateCourseHandler(courseDeps),
		UpdateCourse:        command.NewUpdateCourseHandler(courseDeps),
		DeleteCourse:        command.NewDeleteCourseHandler(courseDeps),
		Enroll:              command.NewEnrollHandler(engineDeps),
		CompleteModule:      command.NewCompleteModuleHandler(engineDeps),
		SubmitVideoProgress: command.NewSubmitVideoProgressHandler(engineDeps, repos.Progress),
		CreateLearningPath:  command.NewCreateLearningPathHandler(repos.Paths, nil),
		UploadMedia:         uploadMedia,
		SeedCatalog:         command.NewSeedCatalogHandler(repos.Courses, repos.Paths, backend.Locker),

		GetProfile:    query.NewGetProfileHandler(repos.Users),
		ListCourses:   query.NewListCoursesHandler(repos.Courses),
		GetCourse:     query.NewGetCourseHandler(repos.Courses),
		LearningPaths: query.NewLearningPathsHandler(repos.Paths, repos.Courses),
		MyEnrollments: query.NewMyEnrollmentsHandler(repos.Enrollments, repos.Courses),
		UserProgress:  query.NewUserProgressHandler(repos.Enrollments, repos.Courses),
		VideoProgress: query.NewVideoProgressHandler(repos.Progress),
		Analytics:     query.NewAnalyticsHandler(sources, repos.Snapshots),

		Identity:      tokens,
		Features:      cfg.Features,
		Logger:        apiLog,
		HealthChecker: checker,
		Version:       cfg.App.Version,
		Metrics: func() map[string]interface{} {
			m := map[string]interface{}{
				"event_bus": eventBus.Stats().Snapshot(),
				"store":     string(backend.Name),
				"features":  cfg.Features.All(),
			}
			if pool := backend.Stats(); pool != nil {
				m["store_pool"] = pool
			}
			if objects != nil {
				m["object_storage"] = objects.State().String()
			}
			return m
		},
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 10. START
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", "address", httpServer.Address())
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	log.Info("learning hub API is running", "http_address", httpServer.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Error("service error", "error", err)
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		log.Warn("shutdown completed with errors")
		return nil
	}

	// event bus and store close through defer
	log.Info("shutdown completed successfully", "uptime", httpServer.Uptime().Round(time.Second).String())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger configures the process-wide slog logger.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Observability.LogLevel)}
	if cfg.App.Debug {
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

func slogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
