package redis

import (
	"context"
	"fmt"
	"time"

	"inputbid-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewClient creates a Redis client for the broadcaster and deadline scheduler
func NewClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})
}

// Connect creates a client and verifies the server answers
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := NewClient(cfg)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}
