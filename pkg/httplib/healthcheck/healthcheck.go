package healthcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// HealthCheck is the health check handler. GET /health answers liveness,
// GET /ready runs every registered checker.
type HealthCheck struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
}

// New creates a health check whose readiness probes time out after timeout.
func New(timeout time.Duration) *HealthCheck {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthCheck{checkers: make(map[string]Checker), timeout: timeout}
}

// Register adds a readiness checker under name, replacing any previous one.
func (hc *HealthCheck) Register(name string, check Checker) {
	hc.mu.Lock()
	hc.checkers[name] = check
	hc.mu.Unlock()
}

// Handler is used to control the flow of GET /health and GET /ready endpoints
func (hc *HealthCheck) Handler(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case IsHealthCheckRequest(r):
			hc.ServeHTTP(w, r)
			return
		case IsReadinessRequest(r):
			hc.ServeReady(w, r)
			return
		}

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

// ServeHTTP serve http request for health check
func (hc *HealthCheck) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// ServeReady runs the checkers and answers 503 when any of them fails.
func (hc *HealthCheck) ServeReady(w http.ResponseWriter, r *http.Request) {
	results := hc.Check(r.Context())

	status := http.StatusOK
	for _, result := range results {
		if result != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(results)
}

// Check runs every checker concurrently and returns "ok" or the error text by name.
func (hc *HealthCheck) Check(ctx context.Context) map[string]string {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checkers))
	for name := range hc.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]Checker, len(names))
	for i, name := range names {
		checks[i] = hc.checkers[name]
	}
	hc.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	out := make([]string, len(names))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := check(ctx); err != nil {
				out[i] = err.Error()
				return
			}
			out[i] = "ok"
		}()
	}
	wg.Wait()

	results := make(map[string]string, len(names))
	for i, name := range names {
		results[name] = out[i]
	}
	return results
}

// IsHealthCheckRequest is used to check if the request is a health check request
func IsHealthCheckRequest(r *http.Request) bool {
	return r.Method == "GET" && r.URL.Path == "/health"
}

// IsReadinessRequest is used to check if the request is a readiness request
func IsReadinessRequest(r *http.Request) bool {
	return r.Method == "GET" && r.URL.Path == "/ready"
}
