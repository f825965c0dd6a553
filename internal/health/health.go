// Package health aggregates component health checks for the /healthz endpoint.
package health

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "HEALTHY"
	StatusDegraded  Status = "DEGRADED"
	StatusUnhealthy Status = "UNHEALTHY"
)

// ComponentHealth represents the health of a single component.
type ComponentHealth struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	LatencyMS float64                `json:"latencyMs"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Check represents a health check function.
type Check func(ctx context.Context) ComponentHealth

// SystemHealth represents overall system health.
type SystemHealth struct {
	Status     Status            `json:"status"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
	Goroutines int               `json:"goroutines"`
}

// Checker runs registered checks on demand.
type Checker struct {
	mu        sync.RWMutex
	checks    map[string]Check
	timeout   time.Duration
	startTime time.Time
}

// NewChecker creates a checker whose checks share a per-call timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:    make(map[string]Check),
		timeout:   timeout,
		startTime: time.Now(),
	}
}

// Register adds a named check, replacing any previous one.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every registered check concurrently. Any unhealthy component
// makes the system unhealthy; any degraded one makes it degraded.
func (c *Checker) Check(ctx context.Context) SystemHealth {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan ComponentHealth, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(n string, chk Check) {
			defer wg.Done()
			start := time.Now()
			h := run(ctx, chk)
			h.Name = n
			h.LatencyMS = float64(time.Since(start).Microseconds()) / 1000
			results <- h
		}(name, check)
	}

	wg.Wait()
	close(results)

	out := SystemHealth{
		Status:     StatusHealthy,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	for h := range results {
		out.Components = append(out.Components, h)
		switch h.Status {
		case StatusUnhealthy:
			out.Status = StatusUnhealthy
		case StatusDegraded:
			if out.Status == StatusHealthy {
				out.Status = StatusDegraded
			}
		}
	}
	sort.Slice(out.Components, func(i, j int) bool {
		return out.Components[i].Name < out.Components[j].Name
	})
	return out
}

// run executes a check, turning a panic into an unhealthy result.
func run(ctx context.Context, check Check) (h ComponentHealth) {
	defer func() {
		if r := recover(); r != nil {
			h = ComponentHealth{Status: StatusUnhealthy, Message: fmt.Sprintf("check panicked: %v", r)}
		}
	}()
	return check(ctx)
}

// PingCheck reports unhealthy when ping fails and degraded when it is slower
// than slow.
func PingCheck(ping func(ctx context.Context) error, slow time.Duration) Check {
	return func(ctx context.Context) ComponentHealth {
		start := time.Now()
		err := ping(ctx)
		latency := time.Since(start)

		if err != nil {
			return ComponentHealth{Status: StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
		}
		if slow > 0 && latency > slow {
			return ComponentHealth{Status: StatusDegraded, Message: fmt.Sprintf("slow: %v", latency)}
		}
		return ComponentHealth{Status: StatusHealthy}
	}
}

// BroadcasterCheck reports the connection count of the hub. It is always
// healthy while the process serves requests.
func BroadcasterCheck(clients func() int, channels func() []string) Check {
	return func(context.Context) ComponentHealth {
		return ComponentHealth{
			Status: StatusHealthy,
			Details: map[string]interface{}{
				"clients":  clients(),
				"channels": channels(),
			},
		}
	}
}
