// Package messaging carries domain events from commands to event handlers
// inside one process.
package messaging

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

var (
	// ErrClosed is returned by Publish and Subscribe after Close.
	ErrClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("event handler panicked")
)

// Options configures a Bus.
type Options struct {
	// Async hands each delivery to a goroutine bounded by Workers.
	// Otherwise Publish runs handlers inline.
	Async   bool
	Workers int
	Logger  *slog.Logger
}

// Bus implements shared.EventBus. A handler's error or panic is logged and
// counted but never returned to the publisher: enrollment writes have
// already committed by the time their events are published.
type Bus struct {
	log   *slog.Logger
	async bool
	slots chan struct{}
	stats *Stats

	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool

	done     chan struct{}
	inflight sync.WaitGroup
}

// NewBus creates an open bus. Workers defaults to 10.
func NewBus(opts Options) *Bus {
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bus{
		log:    opts.Logger.With("component", "event_bus"),
		async:  opts.Async,
		slots:  make(chan struct{}, opts.Workers),
		stats:  newStats(),
		byType: make(map[shared.EventType][]shared.EventHandler),
		done:   make(chan struct{}),
	}
}

// Subscribe delivers events of one type to h.
func (b *Bus) Subscribe(eventType shared.EventType, h shared.EventHandler) error {
	return b.add(h, func() {
		b.byType[eventType] = append(b.byType[eventType], h)
	})
}

// SubscribeAll delivers every event to h.
func (b *Bus) SubscribeAll(h shared.EventHandler) error {
	return b.add(h, func() {
		b.wildcard = append(b.wildcard, h)
	})
}

func (b *Bus) add(h shared.EventHandler, register func()) error {
	if h == nil {
		return errors.New("event handler is nil")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	register()
	return nil
}

// Publish fans the event out to its subscribers.
func (b *Bus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event is nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	targets := append(append([]shared.EventHandler(nil), b.byType[event.EventType()]...), b.wildcard...)
	if b.async {
		// registered under the read lock so Close cannot miss it
		b.inflight.Add(len(targets))
	}
	b.mu.RUnlock()

	b.stats.published(event.EventType())
	if len(targets) == 0 {
		b.log.Debug("event has no subscribers", "event_type", event.EventType())
		return nil
	}

	for _, h := range targets {
		if !b.async {
			b.deliver(event, h)
			continue
		}
		go func(h shared.EventHandler) {
			defer b.inflight.Done()
			select {
			case b.slots <- struct{}{}:
			case <-b.done:
				return
			}
			defer func() { <-b.slots }()
			b.deliver(event, h)
		}(h)
	}
	return nil
}

func (b *Bus) deliver(event shared.Event, h shared.EventHandler) {
	start := time.Now()
	err := invoke(event, h)
	b.stats.ran(time.Since(start), err)
	if err != nil {
		b.log.Error("event handler failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

func invoke(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(event)
}

// Wait blocks until every dispatched delivery has finished.
func (b *Bus) Wait() { b.inflight.Wait() }

// Close rejects new events and subscribers, drops deliveries still waiting
// for a worker and waits for the running ones. It is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.inflight.Wait()
	b.log.Info("event bus closed")
	return nil
}

// Stats returns the bus counters.
func (b *Bus) Stats() *Stats { return b.stats }

// ─────────────────────────────────────────────────────────────────────────────
// Counters
// ─────────────────────────────────────────────────────────────────────────────

// Stats counts published events and handler runs.
type Stats struct {
	runs     atomic.Int64
	failures atomic.Int64
	busy     atomic.Int64 // nanoseconds spent in handlers

	mu     sync.Mutex
	byType map[shared.EventType]int64
}

func newStats() *Stats {
	return &Stats{byType: make(map[shared.EventType]int64)}
}

func (s *Stats) published(t shared.EventType) {
	s.mu.Lock()
	s.byType[t]++
	s.mu.Unlock()
}

func (s *Stats) ran(d time.Duration, err error) {
	s.runs.Add(1)
	s.busy.Add(int64(d))
	if err != nil {
		s.failures.Add(1)
	}
}

// StatsSnapshot is what /metrics reports for the bus.
type StatsSnapshot struct {
	Published       int64            `json:"published"`
	PublishedByType map[string]int64 `json:"published_by_type,omitempty"`
	HandlerRuns     int64            `json:"handler_runs"`
	HandlerFailures int64            `json:"handler_failures"`
	SuccessRate     float64          `json:"success_rate"`
	AvgHandlerTime  string           `json:"avg_handler_time"`
}

// Snapshot copies the counters. SuccessRate is 1 before any handler ran.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		HandlerRuns:     s.runs.Load(),
		HandlerFailures: s.failures.Load(),
		SuccessRate:     1,
		AvgHandlerTime:  "0s",
	}
	if snap.HandlerRuns > 0 {
		snap.SuccessRate = float64(snap.HandlerRuns-snap.HandlerFailures) / float64(snap.HandlerRuns)
		snap.AvgHandlerTime = (time.Duration(s.busy.Load()) / time.Duration(snap.HandlerRuns)).String()
	}

	s.mu.Lock()
	snap.PublishedByType = make(map[string]int64, len(s.byType))
	for t, n := range s.byType {
		snap.PublishedByType[string(t)] = n
		snap.Published += n
	}
	s.mu.Unlock()
	return snap
}
