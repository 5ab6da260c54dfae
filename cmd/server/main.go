/*
main.go - HTTP server entry point

PURPOSE:
  Starts the brokerage API over a SQLite store, with the month-close
  rollup scheduler running in the background.

STARTUP SEQUENCE:
  1. Load .env, then flags and environment (package config)
  2. Build the zap logger
  3. Open the SQLite store
  4. Create the API handler and router
  5. Start the rollup scheduler
  6. Serve until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -db               SQLite database path (default: brokerage.db)
                    Use ":memory:" for an in-memory database
  -port             HTTP server port (default: 8080)
  -log-level        debug, info, warn, error (default: info)
  -log-format       json or console (default: json)
  -rollup-interval  How often to roll up the last closed month (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/brokerage.db"
  ./server -db=":memory:" -log-format=console
  PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and environment variables
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

	"go.uber.org/zap"

	"github.com/warp/brokerage/api"
	"github.com/warp/brokerage/config"
	"github.com/warp/brokerage/logging"
	"github.com/warp/brokerage/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load("server", os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "brokerage-server")
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)
	router := api.NewRouter(handler)

	scheduler := api.NewRollupScheduler(handler.Engine, logger)
	scheduler.CheckInterval = cfg.RollupInterval
	scheduler.Enabled = cfg.RollupInterval > 0
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.DBPath),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
