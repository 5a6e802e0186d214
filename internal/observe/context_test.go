package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// startRecordedSpan returns a context carrying a freshly started span from an
// isolated provider, together with the span itself for inspection.
func startRecordedSpan(t *testing.T, name string) (context.Context, trace.Span) {
	t.Helper()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tracetest.NewInMemoryExporter()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), name)
	t.Cleanup(span.End)
	return ctx, span
}

// captureLogs redirects the default logger into a buffer for the duration of
// the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestLogger_AttachesSpanIDs(t *testing.T) {
	buf := captureLogs(t)
	ctx, span := startRecordedSpan(t, "logger-test")

	Logger(ctx).Info("hello")

	line := buf.String()
	wantTrace := "trace_id=" + span.SpanContext().TraceID().String()
	if !strings.Contains(line, wantTrace) {
		t.Errorf("log line %q missing %q", line, wantTrace)
	}
	if !strings.Contains(line, "span_id=") {
		t.Errorf("log line %q missing span_id", line)
	}
}

func TestLogger_PlainWithoutSpan(t *testing.T) {
	buf := captureLogs(t)

	Logger(context.Background()).Info("hello")

	if line := buf.String(); strings.Contains(line, "trace_id") {
		t.Errorf("log line %q should not carry trace_id", line)
	}
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}
}

func TestCorrelationID_MatchesTraceID(t *testing.T) {
	ctx, span := startRecordedSpan(t, "cid-test")

	want := span.SpanContext().TraceID().String()
	if got := CorrelationID(ctx); got != want {
		t.Errorf("CorrelationID = %q, want trace id %q", got, want)
	}
}

func TestStartSpan_RecordsThroughGlobalProvider(t *testing.T) {
	exp := installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "lookup-toll")
	if CorrelationID(ctx) == "" {
		t.Error("StartSpan produced a context without a trace id")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "lookup-toll" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "lookup-toll")
	}
	if spans[0].InstrumentationScope.Name != scopeName {
		t.Errorf("instrumentation scope = %q, want %q", spans[0].InstrumentationScope.Name, scopeName)
	}
}
