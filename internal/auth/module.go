package auth

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/supreset/identity/internal/config"
	"github.com/supreset/identity/internal/mail"
	"github.com/supreset/identity/internal/telemetry"
)

// SnapshotFunc adapts a function to Snapshotter.
type SnapshotFunc func(ctx context.Context) (any, error)

func (f SnapshotFunc) Snapshot(ctx context.Context) (any, error) {
	return f(ctx)
}

type storeParams struct {
	fx.In

	Config *config.AppConfig
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`
	Logger *zap.Logger
}

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			func(db *gorm.DB) Repository {
				return NewRepository(db)
			},
			func(p storeParams) CodeRepository {
				if p.Config.Auth.CodeStore == "redis" && p.Redis != nil {
					p.Logger.Info("verification codes stored in redis")
					return NewRedisCodeRepository(p.Redis)
				}
				return NewCodeRepository(p.DB)
			},
			func(p storeParams) Denylist {
				if p.Config.Auth.RevocationEnabled && p.Redis != nil {
					return NewRedisDenylist(p.Redis)
				}
				return noopDenylist{}
			},
			func(config *config.AppConfig) Hasher {
				return NewBcryptHasher(config.Auth.BcryptCost)
			},
			func(config *config.AppConfig) *TokenService {
				return NewTokenService(&config.Auth)
			},
			func(config *config.AppConfig, repo CodeRepository, hasher Hasher, log *zap.Logger) *CodeStore {
				return NewCodeStore(&config.Auth, repo, hasher, log)
			},
			func(config *config.AppConfig, repo CodeRepository, log *zap.Logger) *Sweeper {
				return NewSweeper(repo, config.Auth.CodeSweepInterval, log)
			},
			func(config *config.AppConfig, log *zap.Logger) (CodeSender, error) {
				return mail.New(&config.Mail, config.Env, log)
			},
			func(collector *telemetry.Collector) (*Metrics, error) {
				return NewMetrics(collector.MeterProvider())
			},
			func(collector *telemetry.Collector) Snapshotter {
				return SnapshotFunc(func(ctx context.Context) (any, error) {
					return collector.Snapshot(ctx)
				})
			},
			NewActivityCounter,
			newService,
			func(config *config.AppConfig, tokens *TokenService, denylist Denylist, metrics *Metrics, log *zap.Logger) *Guard {
				return NewGuard(&config.Auth, tokens, denylist, metrics, log)
			},
			func(config *config.AppConfig, guard *Guard, log *zap.Logger) *Middleware {
				return NewMiddleware(guard, log, config.Server.ExposeInternalErrors)
			},
			func(config *config.AppConfig, svc *Service, middleware *Middleware, snapshots Snapshotter, log *zap.Logger) *Handler {
				return NewHandler(svc, middleware, snapshots, log, config.Server.ExposeInternalErrors)
			},
			NewGRPCHandler,
		),
		fx.Invoke(registerHooks),
	)
}

type serviceParams struct {
	fx.In

	Config     *config.AppConfig
	Logger     *zap.Logger
	Repository Repository
	Hasher     Hasher
	Tokens     *TokenService
	Codes      *CodeStore
	Sender     CodeSender
	Counter    ActivityCounter
	Denylist   Denylist
	Metrics    *Metrics
}

func newService(p serviceParams) *Service {
	return NewService(&p.Config.Auth, p.Logger, Dependencies{
		Repository: p.Repository,
		Hasher:     p.Hasher,
		Tokens:     p.Tokens,
		Codes:      p.Codes,
		Sender:     p.Sender,
		Counter:    p.Counter,
		Denylist:   p.Denylist,
		Metrics:    p.Metrics,
	})
}

func registerHooks(lifecycle fx.Lifecycle, sweeper *Sweeper, log *zap.Logger) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting verification code sweeper")
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}
