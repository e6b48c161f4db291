package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/db"
	"github.com/dealroom/backend/internal/events"
	"github.com/dealroom/backend/internal/notify"
	"go.uber.org/zap"
)

// Notify bridge subscribes to the redis event streams and forwards every
// event to NOTIFY_WEBHOOK_URL.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.RedisURL == "" || cfg.NotifyWebhookURL == "" {
		log.Fatal("notify-bridge needs REDIS_URL and NOTIFY_WEBHOOK_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := db.NewRedisClient(ctx, db.RedisOptions{URL: cfg.RedisURL, Role: "notify-bridge", Attempts: cfg.DBRetryAttempts, Delay: cfg.DBRetryDelay}, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	subscriber := events.NewRedisSubscriber(rdb, log)
	forwarder := notify.NewForwarder(cfg.NotifyWebhookURL, cfg.NotifyTimeout, log)
	if err := forwarder.Attach(ctx, subscriber, events.StreamDeal, events.StreamNotifications); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started", zap.String("webhook", cfg.NotifyWebhookURL))
	<-ctx.Done()
	log.Info("shutting down notify-bridge")
}
