package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"weathergen/internal/platform/config"
)

// NewRedisClient connects the client used by the redis job record store. The
// asynq transport manages its own connections from the same address.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return rdb, nil
}
