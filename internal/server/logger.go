package server

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger for the given APP_ENV.
func NewLogger(env string) (*zap.Logger, error) {
	switch env {
	case EnvProduction:
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	case EnvTesting:
		return zap.NewNop(), nil
	default:
		return zap.NewDevelopment()
	}
}
