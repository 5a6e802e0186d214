// Command tollchat is the chat client for the Tollgate tool server. It
// connects over stdio or streamable HTTP, classifies free-text requests
// into tool calls, and hands everything else to the configured NLP backend
// for translation to SQL.
//
// Run it bare (or as "tollchat repl") for an interactive terminal session,
// "tollchat ask" for a scriptable one-shot request, "tollchat serve" for
// the WebSocket frontend, and "tollchat history" to inspect stored
// transcripts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heravelli/tollgate/internal/chat"
	"github.com/heravelli/tollgate/internal/config"
	"github.com/heravelli/tollgate/internal/health"
	"github.com/heravelli/tollgate/internal/nlp"
	"github.com/heravelli/tollgate/internal/observe"
	"github.com/heravelli/tollgate/internal/resilience"
)

// version is set at build time via ldflags, e.g.:
//
//	go build -ldflags "-X main.version=1.1.0" ./cmd/tollchat
var version = "1.0.0"

// buildMeta holds version and platform metadata for the --version flag.
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("tollchat %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:   "tollchat",
		Short: "Chat client for the Tollgate tool server",
		Long: "Tollchat talks to a Tollgate MCP server. Free text is matched\n" +
			"against the known tool phrases; anything else is translated to SQL\n" +
			"by the configured NLP backend and run against the warehouse.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return runREPL(cmd, args)
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().StringP("config", "c", "tollchat.yaml", "path to the YAML config file")
	root.PersistentFlags().String("env-file", "", "dotenv file with credentials (default .env)")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive chat session (the default)",
		RunE:  runREPL,
	}
	root.AddCommand(replCmd)

	askCmd := &cobra.Command{
		Use:   "ask <request>...",
		Short: "Send one request and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	root.AddCommand(askCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the WebSocket chat frontend",
		RunE:  runServe,
	}
	root.AddCommand(serveCmd)

	historyCmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List stored chat sessions or replay one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	historyCmd.Flags().Bool("purge", false, "delete sessions older than the configured retention")
	root.AddCommand(historyCmd)

	return root
}

// loadConfig reads the dotenv file, loads the YAML config, applies NLP
// environment overrides, and installs the logger. A missing config file at
// the default path is fine; environment variables cover the server details.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotenv(envFile); err != nil {
		return nil, err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}

	nlpEnv, err := config.ParseNLPEnv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyNLPEnv(nlpEnv)

	slog.SetDefault(newLogger(cfg.LogLevel))
	return cfg, nil
}

// dial connects to the tool server and builds the SQL translator from the
// configured NLP backend. The translator is nil when no provider is set.
func dial(ctx context.Context, cfg *config.Config) (*chat.Client, chat.SQLTranslator, error) {
	client, err := chat.Connect(ctx, cfg.Server)
	if err != nil {
		return nil, nil, err
	}
	translator, err := newTranslator(cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, translator, nil
}

func newTranslator(cfg *config.Config) (chat.SQLTranslator, error) {
	if cfg.NLP.Provider == "" {
		return nil, nil
	}
	provider, err := config.DefaultRegistry().CreateNLP(cfg.NLP)
	if err != nil {
		return nil, fmt.Errorf("build nlp provider: %w", err)
	}
	// The breaker turns a dead NLP backend into instant failures instead of
	// a full HTTP timeout per request.
	return nlp.NewTranslator(resilience.GuardProvider(provider)), nil
}

// openStore opens the transcript store, or returns nil when persistence is
// not configured.
func openStore(cfg *config.Config) (*chat.Store, error) {
	if cfg.History.Path == "" {
		return nil, nil
	}
	return chat.OpenStore(cfg.History.Path)
}

// sessionOptions assembles the options for a new chat session, registering
// it in the transcript store when one is open.
func sessionOptions(ctx context.Context, store *chat.Store, translator chat.SQLTranslator) ([]chat.SessionOption, error) {
	var opts []chat.SessionOption
	if translator != nil {
		opts = append(opts, chat.WithTranslator(translator))
	}
	if store != nil {
		id, err := store.CreateSession(ctx)
		if err != nil {
			return nil, fmt.Errorf("create history session: %w", err)
		}
		opts = append(opts, chat.WithStore(store, id))
	}
	return opts, nil
}

func runREPL(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// No signal context here. Readline treats Ctrl+C as "clear the line";
	// the session ends on /quit or end of input.
	ctx := cmd.Context()

	client, translator, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	opts, err := sessionOptions(ctx, store, translator)
	if err != nil {
		return err
	}
	session := chat.NewSession(client, opts...)
	defer session.Close()

	repl, err := chat.NewREPL(session, client)
	if err != nil {
		return err
	}
	if err := repl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, translator, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	opts, err := sessionOptions(ctx, store, translator)
	if err != nil {
		return err
	}
	session := chat.NewSession(client, opts...)
	defer session.Close()

	failed := false
	for _, turn := range session.Process(ctx, strings.Join(args, " ")) {
		if turn.Role != chat.RoleAssistant {
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), turn.Content)
		if strings.HasPrefix(turn.Content, "Error: ") {
			failed = true
		}
	}
	if failed {
		return exitCodeErr(1)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "tollchat",
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	client, translator, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()

		if cfg.History.RetentionDays > 0 {
			sweeper := chat.NewSweeper(store, time.Duration(cfg.History.RetentionDays)*24*time.Hour)
			if err := sweeper.Start(); err != nil {
				return err
			}
			defer sweeper.Stop()
		}
	}

	holder := &translatorHolder{}
	holder.set(translator)

	// Each WebSocket connection gets its own session so transcripts do not
	// interleave; they all share the one server connection.
	factory := func(ctx context.Context) (*chat.Session, error) {
		opts := []chat.SessionOption{chat.WithMetrics(metrics)}
		if t := holder.get(); t != nil {
			opts = append(opts, chat.WithTranslator(t))
		}
		if store != nil {
			id, err := store.CreateSession(ctx)
			if err != nil {
				return nil, err
			}
			opts = append(opts, chat.WithStore(store, id))
		}
		return chat.NewSession(client, opts...), nil
	}

	// Hot reload only applies when the config actually came from a file.
	cfgPath, _ := cmd.Flags().GetString("config")
	if _, statErr := os.Stat(cfgPath); statErr == nil {
		watcher, werr := config.NewWatcher(cfgPath, func(old, new *config.Config) {
			applyReload(holder, config.Diff(old, new), new)
		})
		if werr != nil {
			return fmt.Errorf("watch config: %w", werr)
		}
		defer watcher.Stop()
	}

	r := chi.NewRouter()
	r.Use(observe.Middleware(metrics))
	r.Handle("/chat", chat.NewGateway(factory))
	r.Handle("/metrics", promhttp.Handler())

	var checkers []health.Checker
	if store != nil {
		checkers = append(checkers, health.Ping("history", store))
	}
	health.New(checkers...).Mount(r)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("chat frontend configured",
		slog.String("server", string(cfg.Server.Transport)),
		slog.String("nlp", cfg.NLP.Provider),
		slog.Bool("history", store != nil),
		slog.Bool("retention", cfg.History.RetentionDays > 0))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("chat frontend listening", slog.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return srv.Close()
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve chat frontend: %w", err)
	}
	return nil
}

// applyReload applies what can change at runtime: the log level and the
// NLP backend. Server, history, and listen address changes need a restart.
func applyReload(holder *translatorHolder, d config.ConfigDiff, cfg *config.Config) {
	if d.LogLevelChanged {
		slog.SetDefault(newLogger(d.NewLogLevel))
		slog.Info("log level changed", slog.String("level", string(d.NewLogLevel)))
	}
	if d.NLPChanged {
		t, err := newTranslator(cfg)
		if err != nil {
			slog.Warn("config reload: keeping previous NLP backend", "err", err)
		} else {
			holder.set(t)
			slog.Info("config reload: NLP backend replaced", slog.String("provider", cfg.NLP.Provider))
		}
	}
	if !d.HotReloadable() {
		slog.Warn("server, history, or listen address changed; restart to apply")
	}
}

// translatorHolder hands the current translator to new sessions; a config
// reload swaps it without touching live connections.
type translatorHolder struct {
	mu sync.Mutex
	t  chat.SQLTranslator
}

func (h *translatorHolder) set(t chat.SQLTranslator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.t = t
}

func (h *translatorHolder) get() chat.SQLTranslator {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.t
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return errors.New("history.path is not configured; nothing to show")
	}

	store, err := chat.OpenStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if purge, _ := cmd.Flags().GetBool("purge"); purge {
		if cfg.History.RetentionDays <= 0 {
			return errors.New("history.retention_days is not set; nothing to purge")
		}
		retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		deleted, err := chat.NewSweeper(store, retention).SweepNow(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "purged %d session(s) older than %d day(s)\n", deleted, cfg.History.RetentionDays)
		return nil
	}

	if len(args) == 1 {
		turns, err := store.Turns(ctx, args[0])
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			fmt.Fprintf(out, "no turns recorded for session %s\n", args[0])
			return nil
		}
		for _, turn := range turns {
			fmt.Fprintln(out, chat.FormatTurn(turn))
		}
		return nil
	}

	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no stored sessions")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(out, "%s  %s  %d turns\n", s.ID, s.StartedAt.Format(time.RFC3339), s.Turns)
	}
	return nil
}

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

// exitCodeErr carries an exit code through cobra's error return without
// printing anything further.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// runApp executes the root command and maps the result to a process exit
// code.
func runApp(args []string) int {
	root := newRootCommand(newBuildMeta(version, "", ""))
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		if ec, ok := err.(interface{ ExitCode() int }); ok {
			return ec.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "tollchat: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runApp(os.Args))
}
