// Package dispatch routes tool invocations to registered handlers.
//
// The registry is the single tool table shared by every transport: the MCP
// server exposes its definitions, and Invoke runs a handler by wire name
// while recording execution metrics.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/heravelli/tollgate/internal/observe"
	"github.com/heravelli/tollgate/internal/tools"
)

var (
	// ErrUnknownTool is returned by Invoke for names with no registered tool.
	ErrUnknownTool = errors.New("dispatch: unknown tool")

	// ErrDuplicateTool is returned by Register when a name is already taken.
	ErrDuplicateTool = errors.New("dispatch: tool already registered")
)

// ExecError wraps a handler failure with the name of the tool that failed.
type ExecError struct {
	Tool string
	Err  error
}

func (e *ExecError) Error() string { return "dispatch: tool " + e.Tool + ": " + e.Err.Error() }

func (e *ExecError) Unwrap() error { return e.Err }

// Registry holds tools keyed by wire name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tools.Tool
}

// NewRegistry returns an empty, ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tools.Tool)}
}

// Register adds a tool. The name must be non-empty and not yet taken, and
// the handler must be non-nil.
func (r *Registry) Register(t tools.Tool) error {
	if t.Name == "" {
		return errors.New("dispatch: tool has empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("dispatch: tool %q has nil handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// RegisterAll registers each tool in turn, stopping at the first error.
func (r *Registry) RegisterAll(ts ...tools.Tool) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the tool with the given wire name.
func (r *Registry) Get(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []tools.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]tools.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b tools.Tool) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Invoke runs the named tool. Unknown names return [ErrUnknownTool] without
// running anything; handler failures come back as an [*ExecError] wrapping
// the cause. Every invocation is recorded to the tool metrics.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	met := observe.DefaultMetrics()
	start := time.Now()
	out, err := t.Handler(ctx, args)
	dur := time.Since(start)
	met.ToolExecutionDuration.Record(ctx, dur.Seconds(),
		metric.WithAttributes(observe.Attr("tool", name)))

	observe.Logger(ctx).Debug("tool invoked",
		slog.String("tool", name),
		slog.Duration("duration", dur),
		slog.Bool("error", err != nil))

	if err != nil {
		met.RecordToolCall(ctx, name, "error")
		return "", &ExecError{Tool: name, Err: err}
	}
	met.RecordToolCall(ctx, name, "ok")
	return out, nil
}
