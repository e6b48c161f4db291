package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures the broker connection shared by the event bus,
// the websocket hub and the rate limiter.
type RedisOptions struct {
	URL string
	// Role names the process in CLIENT LIST as dealroom-<role>.
	Role     string
	Attempts uint
	Delay    time.Duration
}

func redisOptions(o RedisOptions) (*redis.Options, error) {
	opts, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ClientName == "" {
		opts.ClientName = "dealroom"
		if o.Role != "" {
			opts.ClientName += "-" + o.Role
		}
	}
	// Subscribers hold a connection each for the life of the process.
	if opts.PoolSize == 0 {
		opts.PoolSize = 20
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 3 * time.Second
	}
	return opts, nil
}

// NewRedisClient connects and pings until redis answers or attempts run out.
func NewRedisClient(ctx context.Context, o RedisOptions, log *zap.Logger) (*redis.Client, error) {
	opts, err := redisOptions(o)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	attempts := o.Attempts
	if attempts == 0 {
		attempts = 1
	}
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		return struct{}{}, client.Ping(pingCtx).Err()
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(o.Delay)),
		backoff.WithMaxTries(attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("redis not ready, retrying", zap.String("addr", opts.Addr), zap.Duration("in", next), zap.Error(err))
		}),
	)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	log.Info("redis connected",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("client_name", opts.ClientName),
		zap.Int("pool_size", opts.PoolSize),
	)
	return client, nil
}
