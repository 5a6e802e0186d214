// Package app wires the Tollgate subsystems into a running tool server.
//
// The App struct owns the full lifecycle: New builds the warehouse runners,
// the tool registry and the MCP server, Run serves the configured transport,
// and Shutdown tears everything down in order.
//
// For testing, inject fake runners via functional options
// (WithDatabricksRunner, WithSnowflakeRunner, etc.). When an option is not
// provided, New creates real executors from the environment.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/heravelli/tollgate/internal/config"
	"github.com/heravelli/tollgate/internal/dispatch"
	"github.com/heravelli/tollgate/internal/health"
	"github.com/heravelli/tollgate/internal/observe"
	"github.com/heravelli/tollgate/internal/server"
	"github.com/heravelli/tollgate/internal/sqlbridge"
	"github.com/heravelli/tollgate/internal/sqlbridge/databricks"
	"github.com/heravelli/tollgate/internal/sqlbridge/postgres"
	"github.com/heravelli/tollgate/internal/sqlbridge/snowflake"
	"github.com/heravelli/tollgate/internal/tools"
	"github.com/heravelli/tollgate/internal/tools/secretword"
	"github.com/heravelli/tollgate/internal/tools/sqlquery"
	"github.com/heravelli/tollgate/internal/tools/tollcalc"
)

// Config selects how the tool server is exposed.
type Config struct {
	// Transport selects stdio or streamable HTTP serving.
	Transport config.Transport

	// ListenAddr is the TCP address for streamable HTTP mode, e.g. ":8080".
	ListenAddr string

	// Version is announced during the MCP handshake.
	Version string
}

// App owns all subsystem lifetimes of the Tollgate tool server.
type App struct {
	cfg Config
	env *config.ServerEnv

	// Subsystems — initialised in New, torn down in Shutdown.
	metrics  *observe.Metrics
	registry *dispatch.Registry
	srv      *server.Server
	health   *health.Handler

	// Runners — one per warehouse slot. A nil postgres runner means the
	// run_postgres_query tool is not offered.
	databricks sqlbridge.Runner
	snowflake  sqlbridge.Runner
	postgres   sqlbridge.Runner

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDatabricksRunner injects the Databricks runner instead of building one
// from the environment.
func WithDatabricksRunner(r sqlbridge.Runner) Option {
	return func(a *App) { a.databricks = r }
}

// WithSnowflakeRunner injects the Snowflake runner instead of building one
// from the environment.
func WithSnowflakeRunner(r sqlbridge.Runner) Option {
	return func(a *App) { a.snowflake = r }
}

// WithPostgresRunner injects the PostgreSQL runner. The run_postgres_query
// tool is registered whenever a runner is present, injected or built.
func WithPostgresRunner(r sqlbridge.Runner) Option {
	return func(a *App) { a.postgres = r }
}

// WithMetrics overrides the default metrics set.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The environment
// settings come from [config.ParseServerEnv]; a nil env behaves like an
// empty one. Use Option functions to inject test doubles for any runner.
//
// Missing warehouse credentials are not an error here. Each executor reports
// its own configuration error at call time, so the server starts without any
// warehouse access and fails only when a query tool is actually used.
func New(ctx context.Context, cfg Config, env *config.ServerEnv, opts ...Option) (*App, error) {
	if !cfg.Transport.IsValid() {
		return nil, fmt.Errorf("app: unknown transport %q", cfg.Transport)
	}
	if env == nil {
		env = &config.ServerEnv{}
	}

	a := &App{cfg: cfg, env: env}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Warehouse runners ─────────────────────────────────────────────
	if err := a.initRunners(ctx); err != nil {
		return nil, fmt.Errorf("app: init runners: %w", err)
	}

	// ── 2. Tool registry ─────────────────────────────────────────────────
	if err := a.initRegistry(); err != nil {
		return nil, fmt.Errorf("app: init registry: %w", err)
	}

	// ── 3. MCP server ────────────────────────────────────────────────────
	a.srv = server.New(a.registry, server.WithVersion(cfg.Version))

	// ── 4. Health checks ─────────────────────────────────────────────────
	a.initHealth()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initRunners builds the warehouse executors that were not injected.
func (a *App) initRunners(ctx context.Context) error {
	if a.databricks == nil {
		popts := []sqlbridge.PollerOption{
			sqlbridge.WithInterval(a.env.PollInterval),
		}
		if a.env.QueryTimeout > 0 {
			popts = append(popts, sqlbridge.WithDeadline(a.env.QueryTimeout))
		}
		a.databricks = databricks.New(databricks.Config{
			Host:        a.env.DatabricksHost,
			Token:       a.env.DatabricksToken,
			WarehouseID: a.env.DatabricksWarehouseID,
		}, databricks.WithPoller(sqlbridge.NewPoller(popts...)))
	}

	if a.snowflake == nil {
		a.snowflake = snowflake.New(snowflake.Config{
			Account:   a.env.SnowflakeAccount,
			User:      a.env.SnowflakeUser,
			Password:  a.env.SnowflakePassword,
			Database:  a.env.SnowflakeDatabase,
			Schema:    a.env.SnowflakeSchema,
			Warehouse: a.env.SnowflakeWarehouse,
		})
	}

	// PostgreSQL connects eagerly, unlike the warehouse APIs, so the tool
	// only exists when a DSN is configured.
	if a.postgres == nil && a.env.PostgresDSN != "" {
		exec, err := postgres.New(ctx, a.env.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.postgres = exec
		a.closers = append(a.closers, func() error {
			exec.Close()
			return nil
		})
		slog.Info("postgres runner connected")
	}

	return nil
}

// initRegistry registers the tool set against the configured runners.
func (a *App) initRegistry() error {
	ts := []tools.Tool{
		secretword.Tool(),
		tollcalc.Tool(),
		sqlquery.Databricks(a.databricks),
		sqlquery.Snowflake(a.snowflake),
	}
	if a.postgres != nil {
		ts = append(ts, sqlquery.Postgres(a.postgres))
	}

	reg := dispatch.NewRegistry()
	if err := reg.RegisterAll(ts...); err != nil {
		return err
	}
	a.registry = reg

	slog.Info("tools registered", "count", len(ts))
	return nil
}

// initHealth wires liveness and readiness checks. Only runners that can be
// probed cheaply get a checker; the warehouse HTTP APIs are exercised lazily
// and stay out of readiness.
func (a *App) initHealth() {
	var checkers []health.Checker
	if a.postgres != nil {
		if p, ok := a.postgres.(health.Pinger); ok {
			checkers = append(checkers, health.Ping("postgres", p))
		}
	}
	a.health = health.New(checkers...)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves MCP on the configured transport and blocks until ctx is
// cancelled or serving fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Transport == config.TransportStdio {
		slog.Info("serving MCP over stdio")
		return a.srv.ServeStdio(ctx)
	}
	return a.runHTTP(ctx)
}

// runHTTP serves MCP, Prometheus metrics and the health probes on one
// listener.
func (a *App) runHTTP(ctx context.Context) error {
	r := chi.NewRouter()
	r.Use(observe.Middleware(a.metrics))
	r.Handle("/mcp", a.srv.HTTPHandler())
	r.Handle("/metrics", promhttp.Handler())
	a.health.Mount(r)

	httpSrv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("serving MCP over streamable HTTP",
			"addr", a.cfg.ListenAddr, "path", "/mcp")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return httpSrv.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: serve http: %w", err)
	}
	return ctx.Err()
}

// Tools returns the names of the registered tools in sorted order.
func (a *App) Tools() []string {
	ts := a.registry.Tools()
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	return names
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
