// cmd/reportd rebuilds forecast reports for the configured symbols on a cron
// schedule, caching them in Redis and exposing /metrics and /healthz.
//
// Usage:
//
//	reportd --config reportd.yaml --run-on-start
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"forecast-engine/config"
	"forecast-engine/internal/logger"
	"forecast-engine/internal/metrics"
	"forecast-engine/internal/notification"
	"forecast-engine/internal/service"
	redisstore "forecast-engine/internal/store/redis"
	sqlitestore "forecast-engine/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file")
	runOnStart := flag.Bool("run-on-start", false, "run a batch immediately instead of waiting for the schedule")
	once := flag.Bool("once", false, "run a single batch and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := logger.Init("reportd", cfg.Level())
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, *runOnStart, *once); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, runOnStart, once bool) error {
	prom := metrics.NewMetrics(prometheus.DefaultRegisterer)
	health := metrics.NewHealthStatus()

	// ---- Open SQLite ----
	if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
		return err
	}
	store, err := sqlitestore.Open(sqlitestore.Config{
		DBPath:      cfg.SQLitePath,
		ArchiveKeep: cfg.ArchiveKeep,
		Logger:      log,
	})
	if err != nil {
		return err
	}
	defer store.Close()
	health.SetSQLiteOK(true)

	var notifier notification.Notifier = notification.NewLogNotifier(log)
	if cfg.WebhookURL != "" {
		notifier = notification.Multi{notifier, notification.NewWebhookNotifier(cfg.WebhookURL)}
	}
	deps := service.Deps{Store: store, Metrics: prom, Health: health, Logger: log, Notifier: notifier}

	// ---- Connect to Redis (optional) ----
	var cache *redisstore.Cache
	if cfg.CacheEnabled() {
		health.SetRedisEnabled(true)
		cache, err = redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   log,
		})
		if err != nil {
			log.Warn("redis unavailable, reports will not be cached", "error", err)
		} else {
			defer cache.Close()
			cache.Breaker().OnStateChange = func(from, to redisstore.State) {
				prom.RedisCircuitBreakerState.Set(float64(to))
				if to == redisstore.StateOpen {
					prom.RedisCircuitBreakerTrips.Inc()
				}
				log.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
			}
			deps.Cache = cache
		}
	}

	svc, err := service.New(cfg, deps)
	if err != nil {
		return err
	}

	if once {
		_, err := svc.RunOnce(ctx)
		return err
	}

	// ---- Ops server + liveness ----
	var rdb *goredis.Client
	if cache != nil {
		rdb = cache.Client()
	}
	health.StartLivenessChecker(ctx, rdb, store.DB(), 15*time.Second)
	if cache != nil {
		go func() {
			if err := svc.WatchReports(ctx, nil); err != nil {
				log.Warn("report announcements unavailable", "error", err)
			}
		}()
	}
	srv := metrics.NewServer(cfg.MetricsAddr, prometheus.DefaultGatherer, health, log)
	srv.Start()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		srv.Stop(shutCtx)
	}()

	return svc.Run(ctx, runOnStart)
}
