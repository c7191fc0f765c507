// main.go: storefront product listing service
// ============================================================
// Start-up order:
//
//  1. Configuration (environment + optional .env file)
//  2. Structured logger
//  3. OpenTelemetry (only when an OTLP endpoint is configured)
//  4. DB pool with logging, metrics and tracing hooks
//  5. Optional schema migration
//  6. Repository (SQL or GORM backend)
//  7. HTTP server with graceful shutdown
// ============================================================
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/storefront/config"
	"github.com/Skryldev/storefront/db"
	"github.com/Skryldev/storefront/repo"
	"github.com/Skryldev/storefront/telemetry"
	"github.com/Skryldev/storefront/web"
)

const serviceName = "storefront"

func main() {
	if err := run(); err != nil {
		slog.Error("storefront: fatal", "err", err)
		os.Exit(1)
	}
}

func run() (err error) {
	// ── 1. Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// ── 2. Structured logger ─────────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Telemetry ─────────────────────────────────────────────────────
	otelShutdown, err := telemetry.Setup(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, otelShutdown(shutdownCtx))
	}()

	// ── 4. DB pool ───────────────────────────────────────────────────────
	system := db.SystemName(cfg.DatabaseDriver)
	collector, err := db.NewOTelCollector(nil, system)
	if err != nil {
		return err
	}
	hooks := []db.Hook{
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SlowQuery,
		}),
		db.NewMetricsHook(collector),
		db.NewTracingHook(db.NewOTelTracer(nil, system)),
	}

	// ── 5. Migrations ────────────────────────────────────────────────────
	if cfg.AutoMigrate {
		if err := db.MigrateUp(cfg.DB(), logger); err != nil {
			return err
		}
		slog.Info("migrations applied")
	}

	database, err := db.Open(cfg.DB(hooks...))
	if err != nil {
		return err
	}
	defer database.Close()
	slog.Info("database connected", "driver", cfg.DatabaseDriver, "backend", cfg.Backend)

	// ── 6. Repository ────────────────────────────────────────────────────
	products, err := newRepository(cfg, database, logger)
	if err != nil {
		return err
	}

	// ── 7. HTTP server ───────────────────────────────────────────────────
	handler := web.NewHandler(products,
		web.WithLogger(logger),
		web.WithPinger(database),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.QueryTimeout + 5*time.Second,
		Handler:           handler.Routes(),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stats := database.Stats()
		slog.Info("database pool at shutdown",
			"open", stats.OpenConnections,
			"in_use", stats.InUse,
			"wait_count", stats.WaitCount,
		)
		return err
	})
	return eg.Wait()
}

func newRepository(cfg *config.Config, database *db.DB, logger *slog.Logger) (repo.ProductRepository, error) {
	switch cfg.Backend {
	case config.BackendGorm:
		g, err := repo.OpenGorm(database, logger, cfg.SlowQuery)
		if err != nil {
			return nil, err
		}
		return repo.NewGormProductRepo(g), nil
	default:
		return repo.NewProductRepo(database), nil
	}
}
