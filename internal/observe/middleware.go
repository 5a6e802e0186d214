package observe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// responseTap captures what the downstream handler wrote: status code and
// body size. Unwrap lets [http.ResponseController] reach the underlying
// writer, which the WebSocket upgrade needs to hijack the connection.
type responseTap struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTap) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTap) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

func (t *responseTap) Unwrap() http.ResponseWriter { return t.ResponseWriter }

// Flush forwards to the underlying writer so streaming responses keep
// working behind the tap.
func (t *responseTap) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// isProbe reports whether path is a health probe. Probes fire every few
// seconds and would drown out real traffic in the logs.
func isProbe(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// observeHTTPRequest feeds one request into the duration histogram.
func observeHTTPRequest(ctx context.Context, m *Metrics, r *http.Request, d time.Duration) {
	m.HTTPRequestDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", r.URL.Path),
		),
	)
}

// Middleware wraps a handler with per-request telemetry: it joins the
// caller's W3C trace context (or starts a new trace), answers with an
// X-Correlation-ID header holding the trace id, feeds the request duration
// histogram, and writes one completion log line per request. Probe paths
// skip the span and the log line but still count in the histogram.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				observeHTTPRequest(r.Context(), m, r, time.Since(start))
				return
			}

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			tap := &responseTap{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tap, r.WithContext(ctx))

			duration := time.Since(start)
			observeHTTPRequest(ctx, m, r, duration)
			span.SetAttributes(semconv.HTTPResponseStatusCode(tap.status))

			attrs := []slog.Attr{
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", tap.status),
				slog.Int("bytes", tap.bytes),
				slog.Duration("duration", duration),
			}
			// The session header ties the line to one streamable MCP session.
			if sid := r.Header.Get("Mcp-Session-Id"); sid != "" {
				attrs = append(attrs, slog.String("mcp_session", sid))
			}
			slog.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		})
	}
}
