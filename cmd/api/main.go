package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricehound/internal/api"
	"pricehound/internal/catalog"
	"pricehound/internal/config"
	"pricehound/internal/feed"
	"pricehound/internal/ingest"
	"pricehound/internal/pkg/logger"
	"pricehound/internal/pkg/notify"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// main starts the storefront API. The ingestion runner is wired in as
// the trigger behind POST /api/admin/ingest; the scheduled loop lives in
// cmd/ingest.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One pool, one migration pass; the API and the ingestion runner
	// share the handle.
	db, err := catalog.Open(cfg.MySQL.DSN)
	if err != nil {
		appLogger.Error("open database failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	trigger := buildRunner(cfg, appLogger, db)

	srv, err := api.NewServer(ctx, cfg, appLogger, db, trigger)
	if err != nil {
		appLogger.Error("init server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    cfg.App.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		appLogger.Info("api server listening", slog.String("addr", cfg.App.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server run failed", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down api server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	if err := srv.Close(); err != nil {
		appLogger.Error("close resources failed", slog.String("error", err.Error()))
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			appLogger.Error("close database failed", slog.String("error", err.Error()))
		}
	}
}

func buildRunner(cfg *config.Config, appLogger *slog.Logger, db *gorm.DB) *ingest.Runner {
	store := catalog.NewStore(db)
	reconciler := catalog.NewReconciler(store, appLogger)
	fetcher := feed.NewHTTPFetcher(cfg.App.FetchTimeout)

	var lock ingest.Locker = ingest.NewLocalLock()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		lock = ingest.NewRunLock(rdb, cfg.App.RunLockTTL)
	}

	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)

	return ingest.NewRunner(fetcher, reconciler, store, lock, notifier, appLogger, ingest.RunnerOptions{
		Sources:         cfg.Ingest.SourceList(),
		DefaultCategory: cfg.Ingest.DefaultCategory,
		NotifyEmail:     cfg.Ingest.NotifyEmail,
	})
}
