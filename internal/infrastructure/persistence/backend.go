// Package persistence opens the configured key-value backend and the lock
// table that goes with it. Every binary starts from Open.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnhub/learning-hub/config"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/kv"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/postgres"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/redis"
	"github.com/learnhub/learning-hub/internal/infrastructure/persistence/sqlite"
	"github.com/learnhub/learning-hub/pkg/retry"
)

// Backend is an opened store, its repositories and the locker guarding them.
type Backend struct {
	Name   config.StoreBackend
	Store  kv.Store
	Repos  *kv.Repositories
	Locker shared.Locker

	closers []func() error
}

// Ping checks the underlying store.
func (b *Backend) Ping(ctx context.Context) error {
	return b.Store.Ping(ctx)
}

// Stats returns connection pool figures for backends that keep a pool, nil
// otherwise.
func (b *Backend) Stats() map[string]int64 {
	if s, ok := b.Store.(interface{ Stats() map[string]int64 }); ok {
		return s.Stats()
	}
	return nil
}

// Close releases the store and any lock connection, last opened first.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// Open connects the backend selected by cfg.Store.Backend. Network backends
// are retried with retry.StoreRetrier so a slow database at boot does not
// kill the process.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	b := &Backend{Name: cfg.Store.Backend}

	var redisClient *redis.Client

	switch cfg.Store.Backend {
	case config.StoreMemory:
		b.Store = kv.NewMemoryStore()

	case config.StoreSQLite:
		store, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		b.Store = store

	case config.StorePostgres:
		conn, err := connectPostgres(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		b.Store = postgres.NewKVStore(conn)

	case config.StoreRedis:
		c, err := connectRedis(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		redisClient = c
		b.Store = redis.NewKVStore(c)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	b.closers = append(b.closers, b.Store.Close)
	b.Repos = kv.NewRepositories(b.Store)

	var locker shared.Locker = kv.NewKeyedMutex()
	if cfg.Redis.UseForLocks {
		if redisClient == nil {
			c, err := connectRedis(ctx, cfg.Redis, log)
			if err != nil {
				_ = b.Close()
				return nil, fmt.Errorf("lock backend: %w", err)
			}
			redisClient = c
			b.closers = append(b.closers, c.Close)
		}
		locker = redis.NewLocker(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockRetry)
		log.Info("using redis locks", "ttl", cfg.Redis.LockTTL)
	}
	b.Locker = kv.WithTimeout(locker, cfg.Progress.LockTimeout)

	log.Info("store opened", "backend", string(b.Name))
	return b, nil
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*postgres.Connection, error) {
	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = int32(cfg.MaxConns)
	opts.MinConns = int32(cfg.MinConns)
	opts.MaxConnLifetime = cfg.ConnMaxLifetime
	opts.MaxConnIdleTime = cfg.ConnMaxIdleTime

	log.Info("connecting to database...")
	conn, err := retry.Value(ctx, storeRetrier(log, "database"), func(ctx context.Context) (*postgres.Connection, error) {
		c, err := postgres.NewConnectionFromURL(ctx, cfg.URL, opts)
		return c, retry.Retryable(err)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.AutoMigrate {
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", "error", err)
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed", "applied", applied, "total", len(status))
		}
	}
	return conn, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	rc := redis.DefaultConfig()
	rc.Host = cfg.Host
	rc.Port = cfg.Port
	rc.Password = cfg.Password
	rc.DB = cfg.DB
	rc.KeyPrefix = cfg.KeyPrefix
	if cfg.PoolSize > 0 {
		rc.PoolSize = cfg.PoolSize
	}
	rc.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		rc.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		rc.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		rc.WriteTimeout = cfg.WriteTimeout
	}

	log.Info("connecting to Redis...", "addr", rc.Addr())
	client, err := retry.Value(ctx, storeRetrier(log, "redis"), func(context.Context) (*redis.Client, error) {
		c, err := redis.NewClient(rc)
		return c, retry.Retryable(err)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func storeRetrier(log *slog.Logger, target string) *retry.Retrier {
	return retry.StoreRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn(target+" not reachable, retrying", "attempt", attempt, "delay", delay.String(), "error", err)
	})
}
