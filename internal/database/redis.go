package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supreset/identity/internal/config"
)

// NewRedisClient connects to redis when an address is configured. Without
// one it returns a nil client and callers fall back to the database.
func NewRedisClient(config *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if config.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	logger.Info("Connected to redis", zap.String("addr", config.Addr), zap.Int("db", config.DB))
	return client, nil
}
