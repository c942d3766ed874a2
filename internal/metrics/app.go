package metrics

import (
	"time"

	"github.com/apony/quoteintake/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Intake pipeline
	SubmissionsTotal       = "intake_submissions_total"
	RateLimitDecisionTotal = "intake_rate_limit_decisions_total"

	// Notification dispatch
	DispatchTotal        = "notify_dispatch_total"
	DispatchDroppedTotal = "notify_dispatch_dropped_total"
	DispatchDuration     = "notify_dispatch_duration_ms"
	DispatchQueueDepth   = "notify_dispatch_queue_depth"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// RecordSubmission counts a quote submission by outcome
// (created, rate_limited, invalid, failed).
func RecordSubmission(outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SubmissionsTotal,
			1,
			map[string]string{"outcome": outcome},
		)
	}
}

// RecordRateLimitDecision counts an allow/deny decision for a rule.
func RecordRateLimitDecision(rule string, allowed bool) {
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionTotal,
			1,
			map[string]string{
				"rule":     rule,
				"decision": decision,
			},
		)
	}
}

// RecordDispatch records a finished dispatch with the method that handled it.
func RecordDispatch(method string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	if method == "" {
		method = "none"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			DispatchTotal,
			1,
			map[string]string{
				"method":  method,
				"outcome": outcome,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			DispatchDuration,
			duration,
			map[string]string{"method": method},
		)
	}
}

// RecordDispatchDropped counts a dispatch dropped because the queue was full.
func RecordDispatchDropped() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(DispatchDroppedTotal, 1, nil)
	}
}

// SetDispatchQueueDepth reports the number of queued dispatches.
func SetDispatchQueueDepth(depth int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(DispatchQueueDepth, float64(depth), nil)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
