package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

const (
	// PrefixLock namespaces lock keys away from data keys.
	PrefixLock = "lock:"

	// DefaultLockTTL bounds how long a crashed holder can block others.
	DefaultLockTTL = 30 * time.Second

	// DefaultLockRetry is the wait between acquisition attempts.
	DefaultLockRetry = 25 * time.Millisecond
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a shared.Locker backed by SET NX PX. Each acquisition stores a
// random token so an expired holder cannot release someone else's lock.
type Locker struct {
	c     *Client
	ttl   time.Duration
	retry time.Duration
}

var _ shared.Locker = (*Locker)(nil)

// NewLocker creates a locker. Zero durations use the defaults.
func NewLocker(c *Client, ttl, retry time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if retry <= 0 {
		retry = DefaultLockRetry
	}
	return &Locker{c: c, ttl: ttl, retry: retry}
}

// LockKey returns the Redis key guarding resource.
func LockKey(resource string) string {
	return PrefixLock + resource
}

// Lock retries until the lock is taken or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	full := l.c.key(LockKey(key))
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.c.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, shared.LockTimeout(key, ctx.Err())
			}
			return nil, fmt.Errorf("redis: lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(full, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, shared.LockTimeout(key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlocker(full, token string) func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		// release even if the request context was cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.c.rdb, []string{full}, token).Err()
	}
}
