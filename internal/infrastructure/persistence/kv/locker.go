package kv

import (
	"context"
	"sync"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// KeyedMutex is an in-process shared.Locker. Each key gets a one-slot channel
// that lives only while someone holds or waits for it.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

var _ shared.Locker = (*KeyedMutex)(nil)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires key, waiting until it is free or ctx is done.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, l)
		return nil, shared.LockTimeout(key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			m.release(key, l)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, l *keyLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// Held returns the number of keys currently locked or awaited.
func (m *KeyedMutex) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// TimedLocker bounds every acquisition of another Locker.
type TimedLocker struct {
	inner   shared.Locker
	timeout time.Duration
}

var _ shared.Locker = (*TimedLocker)(nil)

// WithTimeout wraps l so no caller waits longer than d for a key. A
// non-positive d returns l unchanged.
func WithTimeout(l shared.Locker, d time.Duration) shared.Locker {
	if d <= 0 {
		return l
	}
	return &TimedLocker{inner: l, timeout: d}
}

// Lock acquires key within the configured timeout.
func (t *TimedLocker) Lock(ctx context.Context, key string) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Lock(ctx, key)
}
