package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pollprogram "pollchain/contexts/ledger-voting/poll-program"
	pollpostgres "pollchain/contexts/ledger-voting/poll-program/adapters/postgres"
	pollsqlite "pollchain/contexts/ledger-voting/poll-program/adapters/sqlite"
	"pollchain/contexts/ledger-voting/poll-program/ports"
	"pollchain/internal/platform/config"
	"pollchain/internal/platform/db"
	"pollchain/internal/platform/httpserver"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 10 * time.Second

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	sqlite   *db.SQLite
	logger   *slog.Logger
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return BuildAPIFromConfig(ctx, cfg)
}

// BuildAPIFromConfig wires the poll program onto the configured ledger
// backend.
func BuildAPIFromConfig(ctx context.Context, cfg config.Config) (*APIApp, error) {
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	app := &APIApp{logger: logger}

	var module pollprogram.Module
	switch cfg.LedgerBackend {
	case "", config.LedgerBackendMemory:
		module = pollprogram.NewInMemoryModule(logger, cfg.IdempotencyTTL)
	case config.LedgerBackendPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("POSTGRES_DSN is required")
		}
		pg, err := db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		app.postgres = pg
		repo := pollpostgres.NewRepository(pg.DB, logger)
		if cfg.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				_ = app.Close()
				return nil, err
			}
		}
		module = pollprogram.NewModule(dependencies(cfg, logger, repo, repo, repo))
	case config.LedgerBackendSQLite:
		conn, err := db.ConnectSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		app.sqlite = conn
		repo := pollsqlite.NewRepository(conn.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = app.Close()
			return nil, err
		}
		module = pollprogram.NewModule(dependencies(cfg, logger, repo, repo, systemClock{}))
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}

	app.server = httpserver.New(module, logger, normalizeAddr(cfg.HTTPPort), httpserver.Options{
		SignerJWTSecret: cfg.SignerJWTSecret,
		EnableSwagger:   cfg.EnableSwagger,
	})
	logger.Info("api app built",
		"event", "bootstrap_api_built",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"ledger_backend", cfg.LedgerBackend,
		"jwt_signers", strings.TrimSpace(cfg.SignerJWTSecret) != "",
	)
	return app, nil
}

func dependencies(
	cfg config.Config,
	logger *slog.Logger,
	ledger ports.Ledger,
	idempotency ports.IdempotencyStore,
	clock ports.Clock,
) pollprogram.Dependencies {
	return pollprogram.Dependencies{
		Ledger:         ledger,
		Idempotency:    idempotency,
		Clock:          clock,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	}
}

// Server exposes the HTTP host for in-process tests.
func (a *APIApp) Server() *httpserver.Server {
	return a.server
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	var errs []error
	if a.postgres != nil {
		errs = append(errs, a.postgres.Close())
	}
	if a.sqlite != nil {
		errs = append(errs, a.sqlite.Close())
	}
	return errors.Join(errs...)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.Contains(value, ":") {
		return value
	}
	return ":" + value
}
