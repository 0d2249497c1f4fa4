package http

import (
	"sync"
	"time"
)

// ipLimiter is a token bucket per client key. Each bucket holds up to limit
// tokens and refills at limit per window. Buckets idle for a full window are
// evicted in the background.
type ipLimiter struct {
	limit  float64
	rate   float64 // tokens per nanosecond
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	l := &ipLimiter{
		limit:   float64(limit),
		rate:    float64(limit) / float64(window),
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

// Allow takes one token from key's bucket.
func (l *ipLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.limit, seen: now}
		l.buckets[key] = b
	}
	b.tokens = min(l.limit, b.tokens+float64(now.Sub(b.seen))*l.rate)
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Stop ends the eviction goroutine. Safe to call more than once.
func (l *ipLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *ipLimiter) evictLoop() {
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.evict()
		}
	}
}

// evict drops buckets untouched for a window; they would be full anyway.
func (l *ipLimiter) evict() {
	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
	l.mu.Unlock()
}
