package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pseudocoder/devbridge/internal/actions"
	"github.com/pseudocoder/devbridge/internal/agent"
	"github.com/pseudocoder/devbridge/internal/config"
	"github.com/pseudocoder/devbridge/internal/diff"
	"github.com/pseudocoder/devbridge/internal/logging"
	"github.com/pseudocoder/devbridge/internal/metrics"
	"github.com/pseudocoder/devbridge/internal/runner"
	"github.com/pseudocoder/devbridge/internal/server"
	"github.com/pseudocoder/devbridge/internal/session"
	"github.com/pseudocoder/devbridge/internal/storage"
	"github.com/pseudocoder/devbridge/internal/vcs"
)

// readHeaderTimeout bounds slow clients. Submit requests themselves may run
// for as long as the agent timeout, so no write timeout is set.
const readHeaderTimeout = 10 * time.Second

type serveFlags struct {
	configPath string
	addr       string
	repo       string
	prefix     string
	logLevel   string
}

func newServeCmd(stdout, stderr io.Writer) *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge HTTP server",
		Long: `Start the bridge HTTP server.

Configuration is read from ~/.devbridge/config.toml (or --config), then
DEVBRIDGE_* environment variables, then the flags below.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(cmd, f)
			if err != nil {
				return err
			}

			log, closer, err := logging.Setup(logging.Config{
				Level:    cfg.Logging.Level,
				Format:   cfg.Logging.Format,
				Output:   cfg.Logging.Output,
				FilePath: cfg.Logging.FilePath,
			})
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
			}
			fmt.Fprintf(stdout, "devbridge listening on http://%s%s (project %s)\n", ln.Addr(), cfg.Prefix, cfg.ProjectRoot)
			return serve(ctx, cfg, ln, log)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "Path to config file (default: ~/.devbridge/config.toml)")
	fs.StringVar(&f.addr, "addr", "", "Listen address (default: "+config.DefaultAddr+")")
	fs.StringVar(&f.repo, "repo", "", "Project root the agent works in (default: current directory)")
	fs.StringVar(&f.prefix, "prefix", "", "Path prefix for bridge endpoints (default: "+config.DefaultPrefix+")")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	return cmd
}

// loadServeConfig merges flags over the loaded configuration and resolves
// the project root to an absolute path.
func loadServeConfig(cmd *cobra.Command, f serveFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("repo") {
		cfg.ProjectRoot = f.repo
	}
	if flags.Changed("prefix") {
		cfg.Prefix = f.prefix
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	cfg.ProjectRoot = root
	return cfg, nil
}

// app holds the wired components of a running bridge.
type app struct {
	server *server.Server
	hub    *server.Hub
	store  *storage.SQLiteStore
}

// newApp wires every component from cfg.
func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{}

	run := runner.New(log)
	tracker := session.NewTracker()

	git := vcs.NewClient(run, vcs.Options{
		Executable: cfg.VCS.Executable,
		Dir:        cfg.ProjectRoot,
		Timeout:    cfg.VCSTimeout(),
	}, log)
	if !git.IsWorkTree(context.Background()) {
		log.Warn().Str("project_root", cfg.ProjectRoot).Msg("project root is not a git work tree; diff and revert will fail")
	}

	aggregator := diff.NewAggregator(git, tracker, diff.Config{MaxParallel: cfg.VCS.MaxParallelDiffs}, log)
	reverter := actions.NewReverter(git, cfg.ProjectRoot, log)

	invoker := agent.NewInvoker(agent.Config{
		Executable:     cfg.Agent.Executable,
		DisplayName:    cfg.Agent.DisplayName,
		ProjectRoot:    cfg.ProjectRoot,
		PermissionMode: cfg.Agent.PermissionMode,
		BaseURL:        cfg.Agent.BaseURL,
		BaseURLEnv:     cfg.Agent.BaseURLEnv,
		ExtraArgs:      cfg.Agent.ExtraArgs,
		Timeout:        cfg.AgentTimeout(),
		KillGrace:      cfg.AgentKillGrace(),
		MaxOutputBytes: cfg.Agent.MaxOutputBytes,
	}, run, tracker, log)

	deps := server.Deps{
		Agent:  invoker,
		Diff:   aggregator,
		Revert: reverter,
		Flag:   tracker,
	}

	if cfg.Storage.Path != "" {
		store, err := storage.NewSQLiteStore(cfg.Storage.Path, log)
		if err != nil {
			return nil, err
		}
		a.store = store
		deps.History = store
	}
	if cfg.Server.EnableMetrics {
		rec := metrics.NewPrometheusRecorder()
		deps.Metrics = rec
		deps.MetricsHandler = rec.Handler()
	}
	if cfg.Server.EnableEvents {
		a.hub = server.NewHub(log)
		deps.Hub = a.hub
	}

	a.server = server.New(deps, server.Options{
		Prefix:        cfg.Prefix,
		ProjectRoot:   cfg.ProjectRoot,
		RatePerMinute: cfg.Agent.RatePerMinute,
		Burst:         cfg.Agent.Burst,
	}, log)
	invoker.SetObserver(a.server)
	reverter.SetRevertedCallback(a.server.NotifyFileReverted)

	return a, nil
}

// Close releases the event hub and the history store.
func (a *app) Close() error {
	if a.hub != nil {
		a.hub.Stop()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// serve runs the bridge on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, log zerolog.Logger) error {
	a, err := newApp(cfg, log)
	if err != nil {
		ln.Close()
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("prefix", cfg.Prefix).
		Str("project_root", cfg.ProjectRoot).
		Msg("server started")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	// Stop the hub first so open event streams do not hold Shutdown.
	if a.hub != nil {
		a.hub.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown timed out")
		return srv.Close()
	}
	return nil
}
