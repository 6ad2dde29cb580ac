package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supreset/identity/internal/config"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(config *config.AppConfig, logger *zap.Logger) (*Manager, error) {
				return NewManager(&config.Database, logger)
			},
			func(manager *Manager) *gorm.DB {
				return manager.DB()
			},
			func(config *config.AppConfig, logger *zap.Logger) (*redis.Client, error) {
				return NewRedisClient(&config.Redis, logger)
			},
		),
		fx.Invoke(registerHooks),
	)
}

type hookParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Manager   *Manager
	Redis     *redis.Client `optional:"true"`
	Logger    *zap.Logger
}

func registerHooks(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if p.Redis != nil {
				p.Logger.Info("Closing redis connection")
				if err := p.Redis.Close(); err != nil {
					p.Logger.Warn("failed to close redis", zap.Error(err))
				}
			}
			p.Logger.Info("Closing database connections")
			return p.Manager.Close()
		},
	})
}
