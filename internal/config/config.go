package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendRedis    = "redis"
	StoreBackendPostgres = "postgres"
)

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	StoreBackend      string `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL       string `env:"DATABASE_URL"`
	RedisURL          string `env:"REDIS_URL"`
	SessionTTLSeconds int    `env:"SESSION_TTL_SECONDS" envDefault:"86400"`
	ExposeDebugInfo   bool   `env:"EXPOSE_DEBUG_INFO" envDefault:"false"`
	RateLimitPerMin   int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func (c *Config) Validate(isProduction bool) error {
	switch c.StoreBackend {
	case StoreBackendMemory, StoreBackendRedis, StoreBackendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres (got %q)", c.StoreBackend)
	}

	if c.StoreBackend == StoreBackendRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
	}
	if c.StoreBackend == StoreBackendPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}

	if isProduction {
		if c.ExposeDebugInfo {
			log.Warn().Msg("EXPOSE_DEBUG_INFO is set in production: not-found responses will list live connection codes")
		}
		if c.RedisURL != "" && strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
