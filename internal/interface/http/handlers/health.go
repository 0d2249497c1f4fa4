package handlers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/learnhub/learning-hub/pkg/circuitbreaker"
)

// HealthChecker reports service health for /health and /ready.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc returns nil when the dependency is usable.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health.
type HealthStatus struct {
	// Healthy is false when any check fails.
	Healthy bool `json:"healthy"`
	// Ready is false only when a required check fails.
	Ready bool `json:"ready"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type namedCheck struct {
	name     string
	fn       HealthCheckFunc
	optional bool
}

// CompositeHealthChecker runs its checks concurrently, each under its own
// timeout.
type CompositeHealthChecker struct {
	version string
	started time.Time

	mu      sync.RWMutex
	checks  []namedCheck
	timeout time.Duration
}

// NewCompositeHealthChecker starts with a 5s per-check timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		version: version,
		started: time.Now(),
		timeout: 5 * time.Second,
	}
}

// SetTimeout bounds each check.
func (c *CompositeHealthChecker) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// AddCheck registers a check that gates readiness.
func (c *CompositeHealthChecker) AddCheck(name string, fn HealthCheckFunc) {
	c.add(namedCheck{name: name, fn: fn})
}

// AddOptionalCheck registers a check that only degrades health.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, fn HealthCheckFunc) {
	c.add(namedCheck{name: name, fn: fn, optional: true})
}

func (c *CompositeHealthChecker) add(nc namedCheck) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.checks {
		if c.checks[i].name == nc.name {
			c.checks[i] = nc
			return
		}
	}
	c.checks = append(c.checks, nc)
}

// Check runs every check and aggregates them.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := append([]namedCheck(nil), c.checks...)
	timeout := c.timeout
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Uptime:    time.Since(c.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	if len(checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup
	for i, nc := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, nc, timeout)
		}()
	}
	wg.Wait()

	status.Checks = make(map[string]CheckResult, len(checks))
	var failed []string
	for i, res := range results {
		name := checks[i].name
		status.Checks[name] = res
		if res.Healthy {
			continue
		}
		failed = append(failed, name)
		status.Healthy = false
		if !res.Optional {
			status.Ready = false
		}
	}

	if len(failed) == 0 {
		status.Message = "All checks passed"
	} else {
		sort.Strings(failed)
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	}
	return status
}

func runCheck(ctx context.Context, nc namedCheck, timeout time.Duration) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := nc.fn(ctx)
	res := CheckResult{
		Healthy:  err == nil,
		Optional: nc.optional,
		Message:  "OK",
		Duration: time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		res.Message = err.Error()
	}
	return res
}

// ──────────────────────────────────────────────────────────────────────────────
// Checks
// ──────────────────────────────────────────────────────────────────────────────

// Pinger is satisfied by the store backends and the Redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewPingCheck pings p.
func NewPingCheck(p Pinger) HealthCheckFunc {
	return p.Ping
}

// ErrCircuitOpen is reported by NewBreakerCheck while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// NewBreakerCheck fails while the breaker is open. Half-open passes, since
// probes are already reaching the dependency.
func NewBreakerCheck(state func() circuitbreaker.State) HealthCheckFunc {
	return func(context.Context) error {
		if state() == circuitbreaker.StateOpen {
			return ErrCircuitOpen
		}
		return nil
	}
}
