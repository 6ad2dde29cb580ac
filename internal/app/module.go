package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/supreset/identity/internal/auth"
	"github.com/supreset/identity/internal/config"
	"github.com/supreset/identity/internal/database"
	"github.com/supreset/identity/internal/migration"
	"github.com/supreset/identity/internal/server"
	"github.com/supreset/identity/internal/telemetry"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		Core(),

		// Schema
		migration.Module(),

		// Server
		fx.Provide(server.NewServer),
		fx.Invoke(registerHooks),
	)
}

// Core provides configuration, storage and the auth services without
// starting any listener.
func Core() fx.Option {
	return fx.Options(
		fx.Provide(newLogger),
		fx.Provide(server.LoadConfig),
		database.Module(),
		telemetry.Module(),
		auth.NewModule(),
	)
}

func newLogger() (*zap.Logger, error) {
	env := os.Getenv("APP_ENV")
	return server.NewLogger(env)
}

func registerHooks(
	lifecycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	srv *server.Server,
	cfg *config.AppConfig,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("failed to start server", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			stopCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
			defer cancel()
			srv.Stop(stopCtx)
			return nil
		},
	})
}
