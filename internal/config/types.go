package config

import "time"

type ServerConfig struct {
	Host                 string        `mapstructure:"host"`
	Port                 string        `mapstructure:"port"`
	ReadTimeout          time.Duration `mapstructure:"read_timeout"`
	WriteTimeout         time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout      time.Duration `mapstructure:"shutdown_timeout"`
	ExposeInternalErrors bool          `mapstructure:"expose_internal_errors"`
}

type GRPCConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Host                  string `mapstructure:"host"`
	Port                  string `mapstructure:"port"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	MaxReceiveMessageSize int    `mapstructure:"max_receive_message_size"`
	MaxSendMessageSize    int    `mapstructure:"max_send_message_size"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	Issuer          string        `mapstructure:"issuer"`
	TokenExpiration time.Duration `mapstructure:"token_expiration"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`

	// DefaultPassword is only compared against at login; logging in with it
	// always forces a password change.
	DefaultPassword string `mapstructure:"default_password"`

	CodeTTLSeconds      int           `mapstructure:"code_ttl_seconds"`
	CodeCooldownSeconds int           `mapstructure:"code_cooldown_seconds"`
	CodeMaxAttempts     int           `mapstructure:"code_max_attempts"`
	CodeStore           string        `mapstructure:"code_store"`
	CodeSweepInterval   time.Duration `mapstructure:"code_sweep_interval"`

	EnforceRotation   bool `mapstructure:"enforce_rotation"`
	RevocationEnabled bool `mapstructure:"revocation_enabled"`
}

func (c *AuthConfig) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

func (c *AuthConfig) CodeCooldown() time.Duration {
	return time.Duration(c.CodeCooldownSeconds) * time.Second
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
	LogLevel string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Secure   bool   `mapstructure:"secure"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Configured reports whether enough SMTP settings are present to deliver mail.
func (c *MailConfig) Configured() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.From != ""
}

type AppConfig struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Mail     MailConfig     `mapstructure:"mail"`
}
