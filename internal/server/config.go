package server

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/supreset/identity/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const minProductionSecretLength = 32

// placeholderSecrets are values that have been published in sample configs
// and must never sign real tokens.
var placeholderSecrets = map[string]bool{
	"your-super-secret-jwt-key-change-this-in-production": true,
	"change-me": true,
	"secret":    true,
	"secretKey": true,
}

// legacyEnv maps config keys to the environment variable names older
// deployments already set.
var legacyEnv = map[string]string{
	"auth.jwt_secret":            "JWT_SECRET",
	"auth.default_password":      "DEFAULT_PASSWORD",
	"auth.code_ttl_seconds":      "EMAIL_CODE_TTL_SECONDS",
	"auth.code_cooldown_seconds": "EMAIL_CODE_COOLDOWN_SECONDS",
	"mail.host":                  "SMTP_HOST",
	"mail.port":                  "SMTP_PORT",
	"mail.secure":                "SMTP_SECURE",
	"mail.username":              "SMTP_USER",
	"mail.password":              "SMTP_PASS",
	"mail.from":                  "SMTP_FROM",
	"database.url":               "DATABASE_URL",
	"redis.addr":                 "REDIS_ADDR",
}

// LoadConfig reads the configuration and refuses to return one the service
// must not boot with.
func LoadConfig() (*config.AppConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration without validating it. Tools that only touch
// the database use it directly.
func Load() (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./config/server")

	setDefaults(v, env)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Env = env

	// Load environment-specific overrides, e.g. [auth.production]
	for _, section := range []string{"server", "grpc", "auth"} {
		key := fmt.Sprintf("%s.%s", section, env)
		if len(v.GetStringMap(key)) == 0 {
			continue
		}
		var target any
		switch section {
		case "server":
			target = &cfg.Server
		case "grpc":
			target = &cfg.GRPC
		case "auth":
			target = &cfg.Auth
		}
		if err := v.UnmarshalKey(key, target); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.expose_internal_errors", env != EnvProduction)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", "9090")
	v.SetDefault("grpc.enable_reflection", env == EnvDevelopment)
	v.SetDefault("grpc.max_receive_message_size", 4<<20)
	v.SetDefault("grpc.max_send_message_size", 4<<20)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "supreset")
	v.SetDefault("auth.token_expiration", 7*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.default_password", "")
	v.SetDefault("auth.code_ttl_seconds", 300)
	v.SetDefault("auth.code_cooldown_seconds", 60)
	v.SetDefault("auth.code_max_attempts", 5)
	v.SetDefault("auth.code_store", "database")
	v.SetDefault("auth.code_sweep_interval", time.Minute)
	v.SetDefault("auth.enforce_rotation", true)
	v.SetDefault("auth.revocation_enabled", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "supreset")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "supreset.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.secure", true)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
}

// Validate refuses configurations the service must not boot with.
func Validate(cfg *config.AppConfig) error {
	secret := cfg.Auth.JWTSecret
	switch {
	case secret == "":
		return errors.New("auth.jwt_secret (JWT_SECRET) is required")
	case placeholderSecrets[secret]:
		return errors.New("auth.jwt_secret is a published placeholder value")
	case cfg.Env == EnvProduction && len(secret) < minProductionSecretLength:
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes in production", minProductionSecretLength)
	}

	if cfg.Auth.TokenExpiration <= 0 {
		return errors.New("auth.token_expiration must be positive")
	}
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.Auth.CodeTTLSeconds <= 0 {
		return errors.New("auth.code_ttl_seconds must be positive")
	}
	if cfg.Auth.CodeCooldownSeconds < 0 {
		return errors.New("auth.code_cooldown_seconds must not be negative")
	}
	if cfg.Auth.CodeMaxAttempts <= 0 {
		return errors.New("auth.code_max_attempts must be positive")
	}

	switch cfg.Auth.CodeStore {
	case "database":
	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("auth.code_store = redis requires redis.addr")
		}
	default:
		return fmt.Errorf("unknown auth.code_store %q", cfg.Auth.CodeStore)
	}
	if cfg.Auth.RevocationEnabled && cfg.Redis.Addr == "" {
		return errors.New("auth.revocation_enabled requires redis.addr")
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}

	return nil
}
