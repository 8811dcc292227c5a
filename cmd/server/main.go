/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the attendance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Load settings (with hot reload when -config is given)
  4. Wire services and the API handler
  5. Start the comp-off banking scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: attendance.db)
           Use ":memory:" for in-memory database
  -config  YAML settings file, watched for edits (optional)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the banking scheduler and the settings watcher
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database and hot-reloaded settings
  ./server -db="./data/attendance.db" -config="./settings.yaml"

  # Run with in-memory database
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - settings/watcher.go: Hot reload
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/warp/attendance-engine/violation"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "attendance.db", "SQLite database path")
	configPath := flag.String("config", "", "YAML settings file (watched for edits)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	// Settings: a watched file when -config is given, built-in defaults
	// otherwise. Defaults carry an empty role table, so punching needs a
	// config file in practice.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var provider settings.Provider
	if *configPath != "" {
		watcher, err := settings.NewWatcher(*configPath, logger)
		if err != nil {
			logger.Error("failed to load settings", slog.String("error", err.Error()))
			os.Exit(1)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("settings watcher stopped", slog.String("error", err.Error()))
			}
		}()
		provider = watcher
	} else {
		logger.Warn("no -config given, using built-in defaults with an empty role table")
		provider = settings.Default()
	}

	// Wire services
	violations := &violation.Logger{
		Sink:     store,
		Notifier: &violation.LogNotifier{Logger: logger},
		Log:      logger,
	}
	punches := &attendance.PunchService{
		Events:     store,
		Unlocks:    store,
		Locations:  store,
		Settings:   provider,
		Violations: violations,
		Log:        logger,
	}
	bank := &overtime.Bank{Events: store, Store: store}

	handler := &api.Handler{
		Store:    store,
		Punches:  punches,
		Unlocks:  &attendance.UnlockService{Store: store},
		Balances: &leave.Service{Usage: store, CompOff: store},
		Bank:     bank,
		Settings: provider,
	}

	// Comp-off banking scheduler
	scheduler := api.NewBankingScheduler(store, bank, provider)
	scheduler.Log = logger
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", slog.String("addr", fmt.Sprintf("http://localhost:%d", *port)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server stopped")
}
