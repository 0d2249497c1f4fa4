// Package scheduler runs background jobs on cron expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrNilJob         = errors.New("scheduler: job is nil")
	ErrInvalidSpec    = errors.New("scheduler: invalid cron spec")
	ErrDuplicateJob   = errors.New("scheduler: job already registered")
	ErrUnknownJob     = errors.New("scheduler: unknown job")
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
)

// Job is a unit of background work. Run's context ends when the scheduler
// stops or the job exceeds its timeout.
type Job interface {
	Name() string
	Description() string
	Run(ctx context.Context) error
}

// Run is the outcome of one execution.
type Run struct {
	Job      string
	Started  time.Time
	Duration time.Duration
	Err      error
	Manual   bool
}

// OK reports whether the run succeeded.
func (r Run) OK() bool { return r.Err == nil }

// Config configures New.
type Config struct {
	Logger *slog.Logger

	// Location the cron expressions are evaluated in. Nil means UTC.
	Location *time.Location

	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration

	// History is how many recent runs are kept. Defaults to 100.
	History int
}

type entry struct {
	job      Job
	spec     string
	id       cron.EntryID
	runs     int64
	failures int64
	last     *Run
}

// Scheduler wraps a cron runner with per-job bookkeeping. Overlapping runs
// of the same job are skipped and panics are recovered.
type Scheduler struct {
	log     *slog.Logger
	cron    *cron.Cron
	loc     *time.Location
	timeout time.Duration
	keep    int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
	recent  []Run
	started time.Time
	running bool
}

// New creates a stopped scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.History <= 0 {
		cfg.History = 100
	}

	log := cfg.Logger.With("component", "scheduler")
	adapter := cronLog{log}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		log: log,
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		loc:     cfg.Location,
		timeout: cfg.Timeout,
		keep:    cfg.History,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Add schedules job with a five-field cron expression or a descriptor such
// as "@daily" or "@every 1h".
func (s *Scheduler) Add(job Job, spec string) error {
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	e := &entry{job: job, spec: spec}
	id, err := s.cron.AddFunc(spec, func() { s.run(s.ctx, e, false) })
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSpec, spec, err)
	}
	e.id = id
	s.entries[name] = e

	s.log.Info("job scheduled",
		"job", name,
		"spec", spec,
		"next_run", s.next(e).Format(time.RFC3339),
	)
	return nil
}

// Remove unschedules a job.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)
	return nil
}

// Start begins firing jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyStarted
	}
	s.running = true
	s.started = time.Now()
	s.cron.Start()
	s.log.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Stop stops firing, cancels running jobs and waits for them until ctx ends.
// A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.running = false
	s.mu.Unlock()

	drained := s.cron.Stop()
	s.cancel()

	select {
	case <-drained.Done():
		s.log.Info("scheduler stopped", "uptime", time.Since(s.started).Round(time.Second).String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether Start has been called without Stop.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Trigger runs a job now, outside its schedule, and returns the job's error.
func (s *Scheduler) Trigger(ctx context.Context, name string) (Run, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	r := s.run(ctx, e, true)
	return r, r.Err
}

func (s *Scheduler) run(ctx context.Context, e *entry, manual bool) Run {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := e.job.Name()
	r := Run{Job: name, Started: time.Now(), Manual: manual}
	r.Err = e.job.Run(ctx)
	r.Duration = time.Since(r.Started)

	s.mu.Lock()
	e.runs++
	if r.Err != nil {
		e.failures++
	}
	e.last = &r
	s.recent = append(s.recent, r)
	if over := len(s.recent) - s.keep; over > 0 {
		s.recent = append(s.recent[:0:0], s.recent[over:]...)
	}
	s.mu.Unlock()

	if r.Err != nil {
		s.log.Error("job failed", "job", name, "manual", manual, "duration", r.Duration.String(), "error", r.Err)
	} else {
		s.log.Info("job finished", "job", name, "manual", manual, "duration", r.Duration.String())
	}
	return r
}

func (s *Scheduler) next(e *entry) time.Time {
	ce := s.cron.Entry(e.id)
	if !ce.Next.IsZero() {
		return ce.Next
	}
	if ce.Schedule == nil {
		return time.Time{}
	}
	return ce.Schedule.Next(time.Now().In(s.loc))
}

// JobStatus describes a scheduled job.
type JobStatus struct {
	Name        string
	Description string
	Spec        string
	NextRun     time.Time
	Runs        int64
	Failures    int64
	Last        *Run
}

// Jobs lists the scheduled jobs by name.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, s.status(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Job describes one scheduled job.
func (s *Scheduler) Job(name string) (JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.status(e), nil
}

func (s *Scheduler) status(e *entry) JobStatus {
	return JobStatus{
		Name:        e.job.Name(),
		Description: e.job.Description(),
		Spec:        e.spec,
		NextRun:     s.next(e),
		Runs:        e.runs,
		Failures:    e.failures,
		Last:        e.last,
	}
}

// Recent returns up to limit of the latest runs, oldest first. A limit of
// zero returns everything kept.
func (s *Scheduler) Recent(limit int) []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	return append([]Run(nil), s.recent[len(s.recent)-limit:]...)
}

// Totals sums runs and failures over every job.
func (s *Scheduler) Totals() (runs, failures int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		runs += e.runs
		failures += e.failures
	}
	return runs, failures
}

// cronLog routes cron's own logging to slog. Its info lines are chatty, so
// they go to debug.
type cronLog struct{ l *slog.Logger }

func (c cronLog) Info(msg string, kv ...interface{}) { c.l.Debug(msg, kv...) }

func (c cronLog) Error(err error, msg string, kv ...interface{}) {
	c.l.Error(msg, append(kv, "error", err)...)
}
