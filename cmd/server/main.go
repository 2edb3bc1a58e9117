/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the job clock server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (cobra)
  2. Load config (defaults, .env, TOML file, JOBCLOCK_* env)
  3. Configure zerolog
  4. Initialize SQLite store
  5. Create controller, API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --config  TOML config file (optional)
  --port    HTTP server port, overrides server.port
  --db      SQLite database path, overrides database.path
            Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server --db=./data/jobclock.db
  ./server --config=/etc/jobclock.toml --port=3000
  JOBCLOCK_LOGGING_FORMAT=json ./server
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/warp/jobclock/api"
	"github.com/warp/jobclock/config"
	"github.com/warp/jobclock/store/sqlite"
	"github.com/warp/jobclock/tracking"
)

var (
	configPath string
	port       int
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "jobclock",
	Short: "Job clock-in / clock-out server with inventory reconciliation",
	Long: `jobclock records when field workers start and finish jobs, reconciles
the products they used against their carried inventory, and keeps an
append-only audit trail per job.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = port
		}
		if cmd.Flags().Changed("db") {
			cfg.Database.Path = dbPath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	rootCmd.Flags().StringVar(&dbPath, "db", "jobclock.db", "SQLite database path")
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Debug().Str("level", cfg.Level).Msg("log level configured")
}

func run(ctx context.Context, cfg *config.Config) error {
	setupLogging(cfg.Logging)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()
	store.BusyTimeout = cfg.Engine.LockTimeout

	ctrl := tracking.NewController(store, tracking.SystemClock{}, cfg.Engine.LockTimeout)
	ctrl.ClockInWindow = cfg.Engine.ClockInWindow

	handler := api.NewHandler(store, ctrl)
	router := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("db", cfg.Database.Path).
			Dur("clock_in_window", cfg.Engine.ClockInWindow).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
