package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pricehound/internal/catalog"
	"pricehound/internal/config"
	"pricehound/internal/feed"
	"pricehound/internal/ingest"
	"pricehound/internal/pkg/logger"
	"pricehound/internal/pkg/metrics"
	"pricehound/internal/pkg/notify"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// main runs the feed ingestion worker. With -once it performs a single
// run and exits; otherwise it loops on the configured schedule until
// interrupted.
func main() {
	once := flag.Bool("once", false, "run a single ingestion pass and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger := logger.NewDefault(cfg.App.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	db, err := catalog.Open(cfg.MySQL.DSN)
	if err != nil {
		appLogger.Error("open database failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store := catalog.NewStore(db)
	reconciler := catalog.NewReconciler(store, appLogger)
	fetcher := feed.NewHTTPFetcher(cfg.App.FetchTimeout)

	var lock ingest.Locker = ingest.NewLocalLock()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Error("redis ping failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		lock = ingest.NewRunLock(rdb, cfg.App.RunLockTTL)
	}

	notifier := notify.NewEmailNotifier(&cfg.Email, appLogger)

	runner := ingest.NewRunner(fetcher, reconciler, store, lock, notifier, appLogger, ingest.RunnerOptions{
		Sources:         cfg.Ingest.SourceList(),
		DefaultCategory: cfg.Ingest.DefaultCategory,
		NotifyEmail:     cfg.Ingest.NotifyEmail,
	})

	if *once {
		if _, err := runner.Run(ctx); err != nil {
			appLogger.Error("ingestion run failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	metricsAddr := ":2112"
	if v := os.Getenv("INGEST_METRICS_ADDR"); v != "" {
		metricsAddr = v
	}
	metricsServer := &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		appLogger.Info("ingest metrics server started", slog.String("addr", metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("metrics server stopped with error", slog.String("error", err.Error()))
		}
	}()

	appLogger.Info("ingestion worker started",
		slog.Duration("interval", cfg.App.ScheduleInterval),
		slog.Int("sources", len(cfg.Ingest.SourceList())),
	)
	runner.RunEvery(ctx, cfg.App.ScheduleInterval)

	appLogger.Info("shutting down ingestion worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("metrics shutdown error", slog.String("error", err.Error()))
	}
	appLogger.Info("ingestion worker stopped gracefully")
}
