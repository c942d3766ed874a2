package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	fulerrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/apony/quoteintake/internal/metrics"
)

// Check results reported per component.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a component that works but needs attention. Checks that
// return it do not fail readiness.
var ErrDegraded = errors.New("degraded")

// HealthResponse represents the aggregate health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse represents individual probe response
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker defines interface for health checkable components
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to HealthChecker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// QueueStats is implemented by the notification dispatcher.
type QueueStats interface {
	QueueDepth() int
	QueueCapacity() int
}

// QueueChecker reports degraded once the queue is fuller than threshold
// (0..1) and unhealthy when it is full.
func QueueChecker(q QueueStats, threshold float64) HealthChecker {
	return CheckerFunc(func(context.Context) error {
		capacity := q.QueueCapacity()
		if capacity == 0 {
			return nil
		}
		depth := q.QueueDepth()
		if depth >= capacity {
			return errors.New("notification queue full")
		}
		if float64(depth) >= threshold*float64(capacity) {
			return ErrDegraded
		}
		return nil
	})
}

// HealthManager manages health checks and probe states
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
	started  atomic.Bool
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// MarkStarted flips the startup probe to healthy.
func (hm *HealthManager) MarkStarted() {
	hm.started.Store(true)
}

// runHealthChecks executes all registered health checks in name order
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}

		start := time.Now()
		err := checkers[name].CheckHealth(ctx)
		switch {
		case err == nil:
			checks[name] = StatusHealthy
		case errors.Is(err, ErrDegraded):
			checks[name] = StatusDegraded
		case ctx.Err() != nil:
			checks[name] = StatusTimeout
		default:
			checks[name] = StatusUnhealthy
		}
		metrics.RecordHealthCheck(name, checks[name] != StatusUnhealthy, time.Since(start))
	}

	return checks
}

// determineOverallStatus determines overall health status
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		if status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if status == StatusDegraded || status == StatusTimeout {
			degraded = true
		}
	}
	if degraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// HealthHandler reports every check with the service version.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := hm.determineOverallStatus(checks)

	if status == StatusUnhealthy {
		respondUnavailable(w, r, "aggregate health check failed", "", status, checks)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler reports that the process is serving requests. It runs no
// dependency checks.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler reports whether dependencies can serve traffic.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(checkCtx)
	status := hm.determineOverallStatus(checks)

	if status == StatusUnhealthy {
		respondUnavailable(w, r, "readiness probe failed", "ready", status, checks)
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
}

// StartupHandler reports whether initialization finished.
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	if !hm.started.Load() {
		respondUnavailable(w, r, "startup probe failed", "startup", "starting", nil)
		return
	}
	writeJSON(w, http.StatusOK, ProbeResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()})
}

func respondUnavailable(w http.ResponseWriter, r *http.Request, message, probe, status string, checks map[string]string) {
	envelope := fulerrors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message)

	details := map[string]interface{}{"status": status}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	if probe != "" {
		details["probe"] = probe
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	if len(failing) > 0 {
		sort.Strings(failing)
		envelope, _ = envelope.WithContext(map[string]interface{}{"unhealthy_checks": failing})
	}

	respondWithError(w, r, envelope)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
