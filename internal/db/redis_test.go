package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name       string
		in         RedisOptions
		clientName string
		db         int
		poolSize   int
	}{
		{"defaults", RedisOptions{URL: "redis://localhost:6379"}, "dealroom", 0, 20},
		{"role names the client", RedisOptions{URL: "redis://localhost:6379/2", Role: "worker"}, "dealroom-worker", 2, 20},
		{"url settings win", RedisOptions{URL: "redis://localhost:6379/1?client_name=ops&pool_size=5", Role: "api"}, "ops", 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := redisOptions(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.clientName, opts.ClientName)
			assert.Equal(t, tt.db, opts.DB)
			assert.Equal(t, tt.poolSize, opts.PoolSize)
			assert.Equal(t, 3*time.Second, opts.DialTimeout)
		})
	}
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisOptions{URL: "not-a-url"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestNewRedisClientGivesUp(t *testing.T) {
	// nothing listens on port 1
	_, err := NewRedisClient(context.Background(), RedisOptions{
		URL:      "redis://127.0.0.1:1",
		Attempts: 2,
		Delay:    time.Millisecond,
	}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis at 127.0.0.1:1")
}
