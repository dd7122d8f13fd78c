/*
main.go - Application entry point

PURPOSE:
  Starts the payroll engine HTTP server. Loads configuration, opens the
  selected store, wires the ledger and attendance service, and shuts down
  gracefully.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load config (YAML file, .env, PAYROLL_* env), apply explicit flags
  3. Open the store (sqlite, postgres or memory)
  4. Build ledger, attendance service and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port (overrides config)
  -driver  sqlite | postgres | memory (overrides config)
  -db      SQLite path, or Postgres DSN when -driver=postgres
           Use ":memory:" for an in-memory SQLite database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  ./server -config=config.yaml
  ./server -db=":memory:" -port=3000
  PAYROLL_DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

SEE ALSO:
  - config/config.go: settings and their env names
  - api/server.go: router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/attendance"
	"github.com/warp/payroll-engine/calendar"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/ledger"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/store/postgres"
	"github.com/warp/payroll-engine/store/sqlite"
)

// backend is what every store package provides.
type backend interface {
	ledger.Store
	attendance.Store
	attendance.EmployeeStore
	attendance.SanctionStore
	attendance.TxRunner
	calendar.Store
}

func main() {
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port")
	driver := flag.String("driver", "", "Store driver: sqlite, postgres or memory")
	db := flag.String("db", "", "SQLite path or Postgres DSN")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(cfg, *port, *driver, *db)

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// applyFlags overrides config with flags given on the command line.
func applyFlags(cfg *config.Config, port int, driver, db string) {
	if port > 0 {
		cfg.Server.Port = port
	}
	if driver != "" {
		cfg.Database.Driver = driver
	}
	if db != "" {
		if cfg.Database.Driver == config.DriverPostgres {
			cfg.Database.DSN = db
		} else {
			cfg.Database.Path = db
		}
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(slog.String("app", "payroll-engine"))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("store ready", "driver", cfg.Database.Driver)

	l := ledger.New(store, ledger.WithLogger(logger))
	svc := attendance.NewService(attendance.Deps{
		Records:   store,
		Employees: store,
		Sanctions: store,
		Ledger:    l,
		Tx:        store,
		Calendar:  calendar.StoreCalendar{Store: store},
	},
		attendance.WithCalculator(cfg.Calculator()),
		attendance.WithLateness(cfg.Payroll.Lateness()),
		attendance.WithLocation(cfg.Payroll.Location),
		attendance.WithLogger(logger),
	)

	handler := api.NewHandler(svc, store, cfg.Locale.Format(), logger)
	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.Server.CORSOrigins, Logger: logger})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "timezone", cfg.Payroll.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (backend, func(), error) {
	switch db.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, db.DSN, db.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case config.DriverMemory:
		return memory.New(), func() {}, nil

	default:
		store, err := sqlite.New(db.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
}
