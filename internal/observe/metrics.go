// Package observe carries the cross-cutting telemetry for the tollgate
// binaries: OpenTelemetry metrics and traces, trace-aware structured logging,
// and the HTTP middleware that stitches them onto each request.
//
// Instruments live on [Metrics]. Production code shares the [DefaultMetrics]
// instance, which binds to the global meter provider — [InitProvider] installs
// one backed by a Prometheus reader so the usual /metrics scrape keeps
// working. Tests build an isolated instance with [NewMetrics] and a manual
// reader instead.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles every OpenTelemetry instrument the application records,
// grouped by the subsystem that feeds it. OTel instruments synchronise
// internally, so a single instance is shared across goroutines.
type Metrics struct {
	// QueryDuration measures wall-clock time from statement submission to
	// terminal state. Attributes: engine, status.
	QueryDuration metric.Float64Histogram
	// QueryPolls counts status polls issued while statements run.
	// Attribute: engine.
	QueryPolls metric.Int64Counter
	// ActiveQueries tracks statements currently in flight. Attribute: engine.
	ActiveQueries metric.Int64UpDownCounter

	// ToolExecutionDuration measures tool handler latency. Attribute: tool.
	ToolExecutionDuration metric.Float64Histogram
	// ToolCalls counts tool invocations. Attributes: tool, status.
	ToolCalls metric.Int64Counter

	// NLPRequests counts natural-language-to-SQL translations. Attributes:
	// provider, status.
	NLPRequests metric.Int64Counter
	// NLPErrors counts failed translations. Attribute: provider.
	NLPErrors metric.Int64Counter

	// ActiveChatSessions tracks live chat sessions across all transports.
	ActiveChatSessions metric.Int64UpDownCounter

	// HTTPRequestDuration measures request handling time in the HTTP
	// middleware. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// durationBuckets are histogram bucket bounds in seconds. The top end is a
// full minute because warehouse statements can sit queued that long.
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// instrumentSet creates instruments on a single meter and remembers the
// first creation error.
type instrumentSet struct {
	meter metric.Meter
	err   error
}

// histogram creates a Float64Histogram recording seconds.
func (s *instrumentSet) histogram(name, desc string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
	base := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	h, err := s.meter.Float64Histogram(name, append(base, opts...)...)
	if s.err == nil {
		s.err = err
	}
	return h
}

func (s *instrumentSet) counter(name, desc string) metric.Int64Counter {
	c, err := s.meter.Int64Counter(name, metric.WithDescription(desc))
	if s.err == nil {
		s.err = err
	}
	return c
}

func (s *instrumentSet) gauge(name, desc string) metric.Int64UpDownCounter {
	g, err := s.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	if s.err == nil {
		s.err = err
	}
	return g
}

// NewMetrics builds a [Metrics] instance on mp. All instruments are created
// up front; the first creation error aborts and is returned.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	set := instrumentSet{meter: mp.Meter(scopeName)}
	bounded := metric.WithExplicitBucketBoundaries(durationBuckets...)

	met := &Metrics{
		QueryDuration: set.histogram("tollgate.query.duration",
			"End-to-end SQL statement latency by engine and status.", bounded),
		QueryPolls: set.counter("tollgate.query.polls",
			"Total statement status polls by engine."),
		ActiveQueries: set.gauge("tollgate.active_queries",
			"Number of SQL statements currently in flight by engine."),

		ToolExecutionDuration: set.histogram("tollgate.tool_execution.duration",
			"Latency of MCP tool execution.", bounded),
		ToolCalls: set.counter("tollgate.tool.calls",
			"Total tool invocations by tool name and status."),

		NLPRequests: set.counter("tollgate.nlp.requests",
			"Total natural-language-to-SQL requests by provider and status."),
		NLPErrors: set.counter("tollgate.nlp.errors",
			"Total failed natural-language-to-SQL requests by provider."),

		ActiveChatSessions: set.gauge("tollgate.active_chat_sessions",
			"Number of live chat sessions."),

		HTTPRequestDuration: set.histogram("tollgate.http.request.duration",
			"HTTP request latency by method and path."),
	}
	if set.err != nil {
		return nil, set.err
	}
	return met, nil
}

var (
	sharedMetrics *Metrics
	sharedOnce    sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] instance, building it
// against the global meter provider on first use. Panics if instrument
// creation fails.
func DefaultMetrics() *Metrics {
	sharedOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
		sharedMetrics = m
	})
	return sharedMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordQuery records one finished statement run on [Metrics.QueryDuration].
func (m *Metrics) RecordQuery(ctx context.Context, engine, status string, seconds float64) {
	m.QueryDuration.Record(ctx, seconds, metric.WithAttributes(
		Attr("engine", engine), Attr("status", status)))
}

// RecordToolCall counts one tool invocation with its outcome.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(
		Attr("tool", tool), Attr("status", status)))
}

// RecordNLPRequest counts one translation attempt with its outcome.
func (m *Metrics) RecordNLPRequest(ctx context.Context, provider, status string) {
	m.NLPRequests.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider), Attr("status", status)))
}

// RecordNLPError counts one failed translation.
func (m *Metrics) RecordNLPError(ctx context.Context, provider string) {
	m.NLPErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider)))
}
