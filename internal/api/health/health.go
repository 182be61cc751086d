// Package health reports liveness of the API's backing components.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Status is the health state of a component or of the service as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// ComponentStatus is the check result for one component.
type ComponentStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency"`
}

// Response is the aggregated health check payload.
type Response struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
}

// Pinger is implemented by components that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs registered pingers and aggregates their results. The service
// is healthy only when every component is.
type Checker struct {
	mu        sync.RWMutex
	pingers   map[string]Pinger
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewChecker creates a checker with no registered components.
func NewChecker(version string) *Checker {
	return &Checker{
		pingers:   make(map[string]Pinger),
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// Register adds a named component. Re-registering a name replaces the
// previous pinger.
func (c *Checker) Register(name string, p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingers[name] = p
}

// SetTimeout bounds the time allowed for a full check pass.
func (c *Checker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// ComponentNames returns the registered component names, sorted.
func (c *Checker) ComponentNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.pingers))
	for name := range c.pingers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check pings every registered component and aggregates the results.
func (c *Checker) Check(ctx context.Context) *Response {
	c.mu.RLock()
	timeout := c.timeout
	pingers := make(map[string]Pinger, len(c.pingers))
	for name, p := range c.pingers {
		pingers[name] = p
	}
	c.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components := make(map[string]ComponentStatus, len(pingers))
	overall := StatusHealthy
	for name, p := range pingers {
		cs := ping(checkCtx, p)
		components[name] = cs
		if cs.Status == StatusUnhealthy {
			overall = StatusUnhealthy
		}
	}

	return &Response{
		Status:     overall,
		Components: components,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
	}
}

func ping(ctx context.Context, p Pinger) ComponentStatus {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		return ComponentStatus{Status: StatusUnhealthy, Message: err.Error(), Latency: latency}
	}
	return ComponentStatus{Status: StatusHealthy, Latency: latency}
}

// Handler serves the health check over HTTP. Unhealthy reports 503 so load
// balancers can pull the instance.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
