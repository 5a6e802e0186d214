package observe

import (
	"context"
	"slices"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// metricsHarness bundles a Metrics instance with the manual reader behind it,
// so tests can record and then inspect what the SDK aggregated.
type metricsHarness struct {
	*Metrics
	reader *sdkmetric.ManualReader
}

func newMetricsHarness(t *testing.T) *metricsHarness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewMetrics(provider)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return &metricsHarness{Metrics: m, reader: reader}
}

func (h *metricsHarness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}
	return rm
}

// lookup returns the aggregation recorded under name, or nil when the
// instrument has not seen any data.
func (h *metricsHarness) lookup(t *testing.T, name string) metricdata.Aggregation {
	t.Helper()
	for _, scope := range h.collect(t).ScopeMetrics {
		for _, met := range scope.Metrics {
			if met.Name == name {
				return met.Data
			}
		}
	}
	return nil
}

func (h *metricsHarness) sum(t *testing.T, name string) metricdata.Sum[int64] {
	t.Helper()
	data, ok := h.lookup(t, name).(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: no int64 sum recorded", name)
	}
	return data
}

func (h *metricsHarness) histogram(t *testing.T, name string) metricdata.Histogram[float64] {
	t.Helper()
	data, ok := h.lookup(t, name).(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("%s: no float64 histogram recorded", name)
	}
	return data
}

// pointWith finds the data point carrying attribute key=value.
func pointWith(t *testing.T, points []metricdata.DataPoint[int64], key, value string) metricdata.DataPoint[int64] {
	t.Helper()
	for _, dp := range points {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp
		}
	}
	t.Fatalf("no data point with %s=%q", key, value)
	return metricdata.DataPoint[int64]{}
}

func TestNewMetrics_RegistersEveryInstrument(t *testing.T) {
	h := newMetricsHarness(t)
	ctx := context.Background()

	h.RecordQuery(ctx, "databricks", "ok", 0.5)
	h.QueryPolls.Add(ctx, 1)
	h.ActiveQueries.Add(ctx, 1)
	h.ToolExecutionDuration.Record(ctx, 0.5)
	h.RecordToolCall(ctx, "secret_word", "ok")
	h.RecordNLPRequest(ctx, "gateway", "ok")
	h.RecordNLPError(ctx, "gateway")
	h.ActiveChatSessions.Add(ctx, 1)
	h.HTTPRequestDuration.Record(ctx, 0.5)

	rm := h.collect(t)
	if len(rm.ScopeMetrics) != 1 {
		t.Fatalf("scopes = %d, want 1", len(rm.ScopeMetrics))
	}
	if got := rm.ScopeMetrics[0].Scope.Name; got != scopeName {
		t.Errorf("instrumentation scope = %q, want %q", got, scopeName)
	}

	recorded := make(map[string]bool)
	for _, met := range rm.ScopeMetrics[0].Metrics {
		recorded[met.Name] = true
	}
	for _, name := range []string{
		"tollgate.query.duration",
		"tollgate.query.polls",
		"tollgate.active_queries",
		"tollgate.tool_execution.duration",
		"tollgate.tool.calls",
		"tollgate.nlp.requests",
		"tollgate.nlp.errors",
		"tollgate.active_chat_sessions",
		"tollgate.http.request.duration",
	} {
		if !recorded[name] {
			t.Errorf("instrument %s recorded nothing", name)
		}
	}
}

func TestRecordQuery_PartitionsByEngineAndStatus(t *testing.T) {
	h := newMetricsHarness(t)
	ctx := context.Background()

	h.RecordQuery(ctx, "databricks", "ok", 0.5)
	h.RecordQuery(ctx, "databricks", "ok", 1.5)
	h.RecordQuery(ctx, "snowflake", "error", 0.25)

	hist := h.histogram(t, "tollgate.query.duration")
	if len(hist.DataPoints) != 2 {
		t.Fatalf("data points = %d, want one per attribute set", len(hist.DataPoints))
	}
	for _, dp := range hist.DataPoints {
		engine, _ := dp.Attributes.Value("engine")
		switch engine.AsString() {
		case "databricks":
			if dp.Count != 2 || dp.Sum != 2.0 {
				t.Errorf("databricks: count=%d sum=%v, want 2 samples totalling 2.0", dp.Count, dp.Sum)
			}
			if !slices.Equal(dp.Bounds, durationBuckets) {
				t.Errorf("bucket bounds = %v, want %v", dp.Bounds, durationBuckets)
			}
		case "snowflake":
			if dp.Count != 1 {
				t.Errorf("snowflake: count=%d, want 1", dp.Count)
			}
		default:
			t.Errorf("unexpected engine %q", engine.AsString())
		}
	}
}

func TestRecordToolCall_CountsPerOutcome(t *testing.T) {
	h := newMetricsHarness(t)
	ctx := context.Background()

	h.RecordToolCall(ctx, "calculate_toll", "ok")
	h.RecordToolCall(ctx, "calculate_toll", "ok")
	h.RecordToolCall(ctx, "calculate_toll", "error")

	calls := h.sum(t, "tollgate.tool.calls")
	if !calls.IsMonotonic {
		t.Error("tool call counter is not monotonic")
	}
	if got := pointWith(t, calls.DataPoints, "status", "ok").Value; got != 2 {
		t.Errorf("ok calls = %d, want 2", got)
	}
	if got := pointWith(t, calls.DataPoints, "status", "error").Value; got != 1 {
		t.Errorf("failed calls = %d, want 1", got)
	}
}

func TestNLPCounters_TrackRequestsAndFailures(t *testing.T) {
	h := newMetricsHarness(t)
	ctx := context.Background()

	h.RecordNLPRequest(ctx, "gateway", "ok")
	h.RecordNLPRequest(ctx, "gateway", "ok")
	h.RecordNLPRequest(ctx, "gateway", "error")
	h.RecordNLPError(ctx, "gateway")

	requests := h.sum(t, "tollgate.nlp.requests")
	if got := pointWith(t, requests.DataPoints, "status", "ok").Value; got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := pointWith(t, requests.DataPoints, "status", "error").Value; got != 1 {
		t.Errorf("failed requests = %d, want 1", got)
	}

	failures := h.sum(t, "tollgate.nlp.errors")
	if got := pointWith(t, failures.DataPoints, "provider", "gateway").Value; got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestQueryPolls_AccumulatePerEngine(t *testing.T) {
	h := newMetricsHarness(t)
	ctx := context.Background()

	databricks := metric.WithAttributes(Attr("engine", "databricks"))
	for range 3 {
		h.QueryPolls.Add(ctx, 1, databricks)
	}
	h.QueryPolls.Add(ctx, 1, metric.WithAttributes(Attr("engine", "snowflake")))

	polls := h.sum(t, "tollgate.query.polls")
	if got := pointWith(t, polls.DataPoints, "engine", "databricks").Value; got != 3 {
		t.Errorf("databricks polls = %d, want 3", got)
	}
	if got := pointWith(t, polls.DataPoints, "engine", "snowflake").Value; got != 1 {
		t.Errorf("snowflake polls = %d, want 1", got)
	}
}

func TestGauges_FollowAddAndRemove(t *testing.T) {
	h := newMetricsHarness(t)
	ctx := context.Background()

	h.ActiveQueries.Add(ctx, 1)
	h.ActiveQueries.Add(ctx, 1)
	h.ActiveQueries.Add(ctx, -1)
	h.ActiveChatSessions.Add(ctx, 3)
	h.ActiveChatSessions.Add(ctx, -1)

	queries := h.sum(t, "tollgate.active_queries")
	if queries.IsMonotonic {
		t.Error("active query gauge must allow decrements")
	}
	if got := queries.DataPoints[0].Value; got != 1 {
		t.Errorf("active queries = %d, want 1", got)
	}

	sessions := h.sum(t, "tollgate.active_chat_sessions")
	if got := sessions.DataPoints[0].Value; got != 2 {
		t.Errorf("active sessions = %d, want 2", got)
	}
}

func TestHTTPRequestDuration_LabelsMethodAndPath(t *testing.T) {
	h := newMetricsHarness(t)

	h.HTTPRequestDuration.Record(context.Background(), 0.05,
		metric.WithAttributes(Attr("method", "GET"), Attr("path", "/mcp")))

	hist := h.histogram(t, "tollgate.http.request.duration")
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	if v, ok := dp.Attributes.Value("method"); !ok || v.AsString() != "GET" {
		t.Errorf("method attribute = %q, want GET", v.AsString())
	}
	if v, ok := dp.Attributes.Value("path"); !ok || v.AsString() != "/mcp" {
		t.Errorf("path attribute = %q, want /mcp", v.AsString())
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics built two instances")
	}
}
