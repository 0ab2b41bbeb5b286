// Command fundledger serves the commitment ledger over HTTP.
//
// Configuration is read from FUNDLEDGER_* environment variables, optionally
// seeded from .env and .env.local in the working directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/fundledger"
	"github.com/xraph/fundledger/api"
	audithook "github.com/xraph/fundledger/audit_hook"
	"github.com/xraph/fundledger/internal/config"
	"github.com/xraph/fundledger/internal/telemetry"
	"github.com/xraph/fundledger/observability"
	"github.com/xraph/fundledger/store"
	"github.com/xraph/fundledger/store/memory"
	"github.com/xraph/fundledger/store/mongo"
	"github.com/xraph/fundledger/store/postgres"
	"github.com/xraph/fundledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fundledger:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "fundledger", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	l := fundledger.New(s,
		fundledger.WithLogger(logger),
		fundledger.WithLockTimeout(cfg.LockTimeout),
		fundledger.WithMaxRetries(cfg.MaxRetries),
		fundledger.WithRetryBackoff(cfg.RetryInitial, cfg.RetryMax),
		fundledger.WithHookTimeout(cfg.HookTimeout),
		fundledger.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
		fundledger.WithPlugin(audithook.New(auditLog(logger), audithook.WithLogger(logger))),
	)
	if err := l.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}

	r := chi.NewRouter()
	r.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", api.New(l, api.WithLogger(logger)).Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fundledger listening", "addr", cfg.Addr, "backend", cfg.Backend)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := l.Stop(shutdownCtx); err != nil {
		logger.Error("ledger stop failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown failed", "error", err)
	}

	logger.Info("fundledger stopped")
	return serveErr
}

// openStore connects the configured backend.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendPostgres:
		drv := pgdriver.New()
		if err := drv.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("grove: %w", err)
		}
		return postgres.New(db), nil

	case config.BackendSQLite:
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("grove: %w", err)
		}
		return sqlite.New(db), nil

	case config.BackendMongo:
		drv := mongodriver.New()
		if err := drv.Open(ctx, cfg.DSN, mongodriver.WithDatabase(cfg.MongoDB)); err != nil {
			return nil, fmt.Errorf("open mongo: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("grove: %w", err)
		}
		return mongo.New(db), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// auditLog writes audit events to the structured log.
func auditLog(logger *slog.Logger) audithook.Recorder {
	audit := logger.With("stream", "audit")
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		audit.InfoContext(ctx, ev.Action,
			"resource", ev.Resource,
			"resource_id", ev.ResourceID,
			"category", ev.Category,
			"outcome", ev.Outcome,
			"severity", ev.Severity,
			"reason", ev.Reason,
			"metadata", ev.Metadata,
		)
		return nil
	})
}
