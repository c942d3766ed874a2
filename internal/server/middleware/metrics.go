package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/observability"
)

// QuoteRequestsPath is the public intake endpoint.
const QuoteRequestsPath = "/api/v1/quote-requests"

// statusRecorder captures the status code and response size
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// endpointLabel returns the chi route pattern, or a fixed bucket for paths
// outside the router, so metric labels stay low-cardinality.
func endpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; path {
	case "/health", "/health/live", "/health/ready", "/health/startup":
		return "/health/*"
	case "/version", "/metrics", "/", QuoteRequestsPath:
		return path
	default:
		return "/unknown"
	}
}

// errorClass buckets non-2xx statuses for http_errors_total.
func errorClass(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

// RequestMetrics middleware captures HTTP request metrics and logs one line
// per request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := endpointLabel(r)
		status := strconv.Itoa(wrapped.statusCode)

		if sys := observability.TelemetrySystem; sys != nil {
			labels := map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
				"status":   status,
			}
			_ = sys.Counter("http_requests_total", 1, labels)
			_ = sys.Histogram("http_request_duration_ms", duration, labels)

			sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}
			if r.ContentLength > 0 {
				_ = sys.Gauge("http_request_size_bytes", float64(r.ContentLength), sizeLabels)
			}
			_ = sys.Gauge("http_response_size_bytes", float64(wrapped.bytesWritten), sizeLabels)

			if wrapped.statusCode >= 400 {
				_ = sys.Counter("http_errors_total", 1, map[string]string{
					"method":     r.Method,
					"endpoint":   endpoint,
					"status":     status,
					"error_type": errorClass(wrapped.statusCode),
				})
			}
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", duration),
				zap.Int64("response_size", wrapped.bytesWritten),
				zap.String("request_id", GetRequestID(r.Context())),
			)
		}
	})
}
