// Command server runs the hazard monitor: the Kafka ingest pipeline that
// classifies citizen social posts, the Postgres-backed REST API, and the
// websocket hub that pushes dashboard snapshots and emergency alerts.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/coastwatch/hazard-monitor/internal/adapter/httpapi"
	kafkaadapter "github.com/coastwatch/hazard-monitor/internal/adapter/kafka"
	"github.com/coastwatch/hazard-monitor/internal/adapter/postgres"
	redisadapter "github.com/coastwatch/hazard-monitor/internal/adapter/redis"
	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/domain"
	"github.com/coastwatch/hazard-monitor/internal/observability"
	"github.com/coastwatch/hazard-monitor/internal/pipeline"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

// snapshotCachedStore routes the two dashboard snapshot reads through the
// Redis cache while every other storage call hits Postgres directly.
type snapshotCachedStore struct {
	*postgres.Store
	cache *redisadapter.CachedStorage
}

func (s snapshotCachedStore) GetSystemStats(ctx context.Context) (domain.SystemStats, error) {
	return s.cache.GetSystemStats(ctx)
}

func (s snapshotCachedStore) GetRecentActivity(ctx context.Context, limit int) ([]domain.Activity, error) {
	return s.cache.GetRecentActivity(ctx, limit)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Snapshot reads go through Redis when caching is enabled
	// (feature-flagged via REDIS_ADDR / REDIS_ENABLED).
	var storage httpapi.Storage = store
	if cfg.RedisEnabled {
		cache := redisadapter.NewCachedStorage(store, cfg, logger)
		defer cache.Close()
		storage = snapshotCachedStore{Store: store, cache: cache}
		logger.Info("redis stats cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.StatsCacheTTL)
	} else {
		logger.Info("redis stats cache disabled")
	}

	hub := realtime.NewHub(logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	alerter := pipeline.NewAlertRelay(hub, writer, logger)

	p := pipeline.New(reader, pipeline.NewTransformer(), store, alerter, logger, metrics, cfg.BatchSize)
	pusher := realtime.NewPusher(storage, hub, cfg, logger, metrics, clockwork.NewRealClock())

	handler := httpapi.NewHandler(storage, hub, logger)
	srv := httpapi.NewServer(cfg, handler, hub, p, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	go pusher.Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
