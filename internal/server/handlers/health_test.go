package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

type stubQueue struct {
	depth, capacity int
}

func (q stubQueue) QueueDepth() int    { return q.depth }
func (q stubQueue) QueueCapacity() int { return q.capacity }

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", stubChecker{})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusHealthy, resp.Checks["store"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", stubChecker{err: errors.New("down")})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string                 `json:"code"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, StatusUnhealthy, checks["store"])
}

func TestDegradedCheckKeepsReadiness(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("notify_queue", QueueChecker(stubQueue{depth: 95, capacity: 100}, 0.9))

	rec := httptest.NewRecorder()
	manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProbeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestQueueChecker(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, QueueChecker(stubQueue{depth: 1, capacity: 100}, 0.9).CheckHealth(ctx))
	assert.ErrorIs(t, QueueChecker(stubQueue{depth: 90, capacity: 100}, 0.9).CheckHealth(ctx), ErrDegraded)
	assert.Error(t, QueueChecker(stubQueue{depth: 100, capacity: 100}, 0.9).CheckHealth(ctx))
	assert.NoError(t, QueueChecker(stubQueue{}, 0.9).CheckHealth(ctx))
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", stubChecker{err: errors.New("down")})

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartupProbe(t *testing.T) {
	manager := NewHealthManager("dev")

	rec := httptest.NewRecorder()
	manager.StartupHandler(rec, httptest.NewRequest(http.MethodGet, "/health/startup", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	manager.MarkStarted()
	rec = httptest.NewRecorder()
	manager.StartupHandler(rec, httptest.NewRequest(http.MethodGet, "/health/startup", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDetermineOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	manager := NewHealthManager("dev")
	assert.Equal(t, StatusDegraded, manager.determineOverallStatus(map[string]string{"store": StatusTimeout}))
	assert.Equal(t, StatusUnhealthy, manager.determineOverallStatus(map[string]string{
		"store":        StatusUnhealthy,
		"notify_queue": StatusDegraded,
	}))
}

func TestRunHealthChecksReportsTimeout(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", stubChecker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, map[string]string{"store": StatusTimeout}, manager.runHealthChecks(ctx))
}
