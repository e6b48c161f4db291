package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/db"
	"github.com/dealroom/backend/internal/events"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/dealroom/backend/internal/services"
	"go.uber.org/zap"
)

// worker runs the deadline scan and ledger verification against postgres.
// Notices go to redis when REDIS_URL is set and are only logged otherwise.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatal("worker needs STORAGE_DRIVER=postgres", zap.String("storage", cfg.StorageDriver))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.DBRetryAttempts, cfg.DBRetryDelay, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RedisURL != "" {
		rdb, err := db.NewRedisClient(ctx, db.RedisOptions{URL: cfg.RedisURL, Role: "worker", Attempts: cfg.DBRetryAttempts, Delay: cfg.DBRetryDelay}, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
	}

	store := repositories.NewPostgresStore(pool)
	ledger := services.NewAuditLedger(store, publisher, log)
	watcher := services.NewWatcher(store, ledger, publisher, log)

	watcher.Run(ctx, cfg.DeadlineScanInterval, cfg.ChainVerifyWindow)
	log.Info("shutting down worker")
}
