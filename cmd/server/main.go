package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JonMunkholm/kwimport/internal/config"
	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/logging"
	"github.com/JonMunkholm/kwimport/internal/metrics"
	"github.com/JonMunkholm/kwimport/internal/schema"
	"github.com/JonMunkholm/kwimport/internal/store"
	"github.com/JonMunkholm/kwimport/internal/web"
)

// keywordStore is what the server needs from either backend.
type keywordStore interface {
	core.KeywordStore
	core.BatchUpdater
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	ctx := context.Background()
	kwStore, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open keyword store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	catalog := schema.Catalog()
	slog.Info("tool schemas registered", "count", catalog.Len())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(reg)

	service := core.NewService(kwStore, catalog, core.ServiceConfig{
		MaxFileSize:   cfg.Import.MaxFileSize,
		ChunkRows:     cfg.Import.ChunkRows,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	}, core.WithObserver(recorder))
	reg.MustRegister(metrics.NewLimiterCollector(service.Limiter()))

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = metrics.Handler(reg)
	}

	server, err := web.NewServer(service, cfg, metricsHandler)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartJobSweeper(jobCtx, core.SweepConfig{
		Retention: cfg.Jobs.Retention,
		Interval:  cfg.Jobs.SweepInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := service.ActiveImports(); active > 0 {
			slog.Info("waiting for imports to complete", "active", active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		closeStore()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openStore connects the configured backend. Postgres migrations run
// first when enabled; SQLite creates its schema on open.
func openStore(ctx context.Context, db config.DatabaseConfig) (keywordStore, func(), error) {
	switch db.Driver {
	case config.DriverSQLite:
		s, err := store.OpenSQLite(ctx, db.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to database", "driver", db.Driver, "path", db.SQLitePath)
		return s, func() { _ = s.Close() }, nil

	default:
		if db.RunMigrations {
			if err := store.RunMigrations(db.URL); err != nil {
				return nil, nil, err
			}
			slog.Info("migrations applied")
		}
		s, err := store.NewPostgres(ctx, db.URL, store.PoolConfig{
			MaxConns:        db.MaxConns,
			MinConns:        db.MinConns,
			MaxConnLifetime: db.MaxConnLifetime,
			MaxConnIdleTime: db.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		if u, err := url.Parse(db.URL); err == nil {
			slog.Info("connected to database", "driver", db.Driver, "name", strings.TrimPrefix(u.Path, "/"))
		}
		return s, s.Close, nil
	}
}
