package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apony/quoteintake/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	return collector
}

func TestRequestMetricsEmitsRequestMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))

	req := httptest.NewRequest(http.MethodPost, QuoteRequestsPath, strings.NewReader(`{"email":"a@x.io"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"success":true}`, rec.Body.String())
	assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
	assert.Greater(t, collector.CountMetricsByName("http_request_duration_ms"), 0)
	assert.Greater(t, collector.CountMetricsByName("http_request_size_bytes"), 0)
	assert.Greater(t, collector.CountMetricsByName("http_response_size_bytes"), 0)
	assert.Equal(t, 0, collector.CountMetricsByName("http_errors_total"))
}

func TestRequestMetricsCountsErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			collector := setupTelemetry(t)

			handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, QuoteRequestsPath, nil))

			assert.Greater(t, collector.CountMetricsByName("http_errors_total"), 0)
		})
	}
}

func TestRequestMetricsWithTelemetryDisabled(t *testing.T) {
	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = originalTelemetry })

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEndpointLabel(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{QuoteRequestsPath, QuoteRequestsPath},
		{"/api/v1/quote-requests/123", "/unknown"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, endpointLabel(httptest.NewRequest(http.MethodGet, tt.path, nil)))
		})
	}
}

func TestErrorClass(t *testing.T) {
	assert.Equal(t, "client_error", errorClass(http.StatusBadRequest))
	assert.Equal(t, "rate_limited", errorClass(http.StatusTooManyRequests))
	assert.Equal(t, "server_error", errorClass(http.StatusBadGateway))
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	handler := RequestID(RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "test-request-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "test-request-id", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "test-request-id", seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRecoveryWritesInternalError(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, QuoteRequestsPath, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
	assert.NotContains(t, rec.Body.String(), "boom")
}
