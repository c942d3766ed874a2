package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func restoreTracerProvider(t *testing.T) {
	t.Helper()
	original := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(original) })
}

func TestInitTracingNone(t *testing.T) {
	restoreTracerProvider(t)

	shutdown, err := InitTracing(context.Background(), TracingConfig{Exporter: "none"}, "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	require.Empty(t, TraceID(ctx))
}

func TestInitTracingUnknownExporter(t *testing.T) {
	restoreTracerProvider(t)

	_, err := InitTracing(context.Background(), TracingConfig{Exporter: "zipkin"}, "test")
	require.ErrorContains(t, err, `unknown tracing exporter "zipkin"`)
}

func TestTraceIDFromRecordingSpan(t *testing.T) {
	restoreTracerProvider(t)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	otel.SetTracerProvider(tp)

	ctx, span := StartSpan(context.Background(), "intake.submit")
	defer span.End()
	require.Len(t, TraceID(ctx), 32)
	require.Empty(t, TraceID(context.Background()))
}
