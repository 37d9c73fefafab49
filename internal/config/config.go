package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port  int    `env:"PORT,default=8080" validate:"gt=0,lte=65535"`
	Store string `env:"STORE,default=postgres" validate:"oneof=postgres memory"`

	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=Store postgres"`
	// RedisURL is optional. Without it token revocation and cross-instance
	// delivery are disabled.
	RedisURL string `env:"REDIS_URL"`

	JWTSecret     string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,default=24h" validate:"gt=0"`

	LogLevel  string `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT,default=json" validate:"oneof=json console"`

	FeedPageSize       int           `env:"FEED_PAGE_SIZE,default=10" validate:"gt=0,lte=100"`
	MaxMessageLength   int           `env:"MAX_MESSAGE_LENGTH,default=2000" validate:"gt=0"`
	StoreRetryAttempts int           `env:"STORE_RETRY_ATTEMPTS,default=3" validate:"gte=1"`
	StoreRetryBackoff  time.Duration `env:"STORE_RETRY_BACKOFF,default=200ms" validate:"gte=0"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	// AllowedOrigins is a comma separated list of websocket origins. Empty allows all.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}

// Load reads .env.local or .env when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromEnvSet builds a Config from an explicit set of variables.
func FromEnvSet(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Origins() []string {
	return lo.FilterMap(strings.Split(c.AllowedOrigins, ","), func(o string, _ int) (string, bool) {
		o = strings.TrimSpace(o)
		return o, o != ""
	})
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
