package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope for every span and metric the
// application records.
const scopeName = "github.com/heravelli/tollgate"

// Logger returns the default logger with trace_id and span_id attributes
// taken from the span in ctx, so log lines written while serving a request
// can be tied back to its trace. A context without a span yields the default
// logger unchanged.
func Logger(ctx context.Context) *slog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return slog.Default()
	}
	return slog.Default().With(
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	)
}

// CorrelationID returns the hex trace id of the span in ctx, or the empty
// string when there is none. Responses carry this id so callers can quote it
// back when reporting a problem and operators can find the matching logs.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Tracer returns the tracer for Tollgate's instrumentation scope, backed by
// whatever [trace.TracerProvider] is registered globally.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// StartSpan opens a span named name on the Tollgate tracer. The caller owns
// the returned span and must End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}
