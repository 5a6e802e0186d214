// Command tollgate is the Tollgate MCP tool server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/heravelli/tollgate/internal/app"
	"github.com/heravelli/tollgate/internal/config"
	"github.com/heravelli/tollgate/internal/observe"
)

// version is announced during the MCP handshake and in telemetry.
const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	transport := flag.String("transport", "stdio", `serving transport: "stdio" or "http"`)
	addr := flag.String("addr", ":8080", "listen address for -transport http")
	logLevel := flag.String("log-level", "info", "log verbosity: debug, info, warn or error")
	envFile := flag.String("env-file", "", "optional .env file loaded before reading the environment")
	flag.Parse()

	// ── Logger ────────────────────────────────────────────────────────────────
	// Logs go to stderr; in stdio mode stdout carries the MCP stream.
	slog.SetDefault(newLogger(config.LogLevel(*logLevel)))

	// ── Environment ───────────────────────────────────────────────────────────
	if err := config.LoadDotenv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "tollgate: %v\n", err)
		return 1
	}
	env, err := config.ParseServerEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tollgate: %v\n", err)
		return 1
	}

	appCfg := app.Config{ListenAddr: *addr, Version: version}
	switch *transport {
	case "stdio":
		appCfg.Transport = config.TransportStdio
	case "http", "streamable-http":
		appCfg.Transport = config.TransportStreamableHTTP
	default:
		fmt.Fprintf(os.Stderr, "tollgate: unknown transport %q (use stdio or http)\n", *transport)
		return 2
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "tollgate",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, appCfg, env)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	printStartupSummary(appCfg, env, application.Tools())

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

// printStartupSummary writes the summary box to stderr so stdio mode keeps
// stdout clean for the protocol stream.
func printStartupSummary(cfg app.Config, env *config.ServerEnv, tools []string) {
	out := os.Stderr
	fmt.Fprintln(out, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(out, "║         Tollgate — startup summary    ║")
	fmt.Fprintln(out, "╠═══════════════════════════════════════╣")
	printRow(out, "Transport", string(cfg.Transport))
	if cfg.Transport == config.TransportStreamableHTTP {
		printRow(out, "Listen addr", cfg.ListenAddr)
	}
	printRow(out, "Databricks", configured(env.DatabricksHost != "" && env.DatabricksWarehouseID != ""))
	printRow(out, "Snowflake", configured(env.SnowflakeAccount != ""))
	printRow(out, "PostgreSQL", configured(env.PostgresDSN != ""))
	printRow(out, "Tools", strconv.Itoa(len(tools)))
	fmt.Fprintln(out, "╚═══════════════════════════════════════╝")
}

func printRow(out *os.File, kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(out, "║  %-12s    : %-19s ║\n", kind, value)
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "(not configured)"
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
