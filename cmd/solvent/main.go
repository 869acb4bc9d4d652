package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/solvent-hq/solvent/internal/accounts"
	"github.com/solvent-hq/solvent/internal/app"
	"github.com/solvent-hq/solvent/internal/fiscal"
	"github.com/solvent-hq/solvent/internal/journal"
	"github.com/solvent-hq/solvent/internal/ledger"
	"github.com/solvent-hq/solvent/internal/observability"
	"github.com/solvent-hq/solvent/internal/platform/cache"
	"github.com/solvent-hq/solvent/internal/platform/db"
	"github.com/solvent-hq/solvent/internal/shared"
	"github.com/solvent-hq/solvent/internal/tenant"
	"github.com/solvent-hq/solvent/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		runJobsCommand(os.Args[2:])
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, settings cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	settingsStore := tenant.NewStore(tenant.NewPGRepository(pool), redisClient, cfg.SettingsCacheTTL)

	directory := accounts.NewDirectory(pool)
	accountsHandler := accounts.NewHandler(logger, directory)

	journalRepo := journal.NewRepository(pool)
	journalService := journal.NewService(journalRepo, directory, settingsStore, auditLogger)
	journalHandler := journal.NewHandler(logger, journalService, metrics)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, directory)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, metrics)

	fiscalRepo := fiscal.NewRepository(pool)
	fiscalService := fiscal.NewService(fiscalRepo, ledgerService, settingsStore, auditLogger)
	fiscalHandler := fiscal.NewHandler(logger, fiscalService, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accountsHandler,
		JournalHandler:  journalHandler,
		LedgerHandler:   ledgerHandler,
		FiscalHandler:   fiscalHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
