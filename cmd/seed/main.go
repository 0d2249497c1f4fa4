// Package main seeds a store with the sample catalog, the demo instructor
// and, when ADMIN_EMAIL is set, an admin account. Running it twice changes
// nothing: existing records are skipped.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/learnhub/learning-hub/config"
	"github.com/learnhub/learning-hub/internal/application/command"
	"github.com/learnhub/learning-hub/internal/infrastructure/auth"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if cfg.Store.Backend == config.StoreMemory {
		log.Warn("seeding the memory store only lasts for this process")
	}

	backend, err := persistence.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer backend.Close()
	repos := backend.Repos

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog
	// ─────────────────────────────────────────────────────────────────────────
	res, err := command.NewSeedCatalogHandler(repos.Courses, repos.Paths, backend.Locker).Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	log.Info("catalog seeded",
		"courses_created", res.CoursesCreated,
		"courses_skipped", res.CoursesSkipped,
		"paths_created", res.PathsCreated,
		"paths_skipped", res.PathsSkipped,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Demo account
	// ─────────────────────────────────────────────────────────────────────────
	tokens, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	authDeps := command.AuthDeps{
		Users:       repos.Users,
		Credentials: repos.Credentials,
		Hasher:      auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens:      tokens,
		Locker:      backend.Locker,
	}
	created, err := command.EnsureDemoUser(ctx, authDeps)
	if err != nil {
		return fmt.Errorf("demo user: %w", err)
	}
	if created {
		log.Info("demo user created", "email", command.DemoEmail)
	} else {
		log.Info("demo user already exists", "email", command.DemoEmail)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Admin account
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Auth.AdminEmail == "" {
		log.Info("ADMIN_EMAIL not set, no admin account seeded")
		return nil
	}
	created, err = command.EnsureAdmin(ctx, authDeps, command.BootstrapAdminCommand{
		Email:    cfg.Auth.AdminEmail,
		Password: cfg.Auth.AdminPassword,
		Name:     cfg.Auth.AdminName,
	})
	if err != nil {
		return fmt.Errorf("admin user: %w", err)
	}
	log.Info("admin account checked", "email", cfg.Auth.AdminEmail, "created", created)
	return nil
}
