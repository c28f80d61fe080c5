package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"jan-server/services/session-api/internal/domain/conversation"
)

var globalConfig *Config

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config holds all environment backed configuration for session-api.
type Config struct {
	// HTTP Server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	PprofEnabled    bool          `env:"PPROF_ENABLED" envDefault:"false"`
	PprofPort       int           `env:"PPROF_PORT" envDefault:"6060"`

	// Storage
	StoreBackend         string        `env:"STORE_BACKEND" envDefault:"postgres"`
	DBPostgresqlWriteDSN string        `env:"DB_POSTGRESQL_WRITE_DSN"`
	DBPostgresqlRead1DSN string        `env:"DB_POSTGRESQL_READ1_DSN"`
	DBMaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBMaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"15"`
	DBConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate          bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	// Per-conversation locking
	LockBackend string        `env:"LOCK_BACKEND" envDefault:"local"`
	RedisURL    string        `env:"REDIS_URL"`
	LockTTL     time.Duration `env:"LOCK_TTL" envDefault:"2m"`
	LockWait    time.Duration `env:"LOCK_WAIT" envDefault:"90s"`

	// Completion provider
	ProviderBaseURL       string        `env:"PROVIDER_BASE_URL" envDefault:"https://api.openai.com/v1"`
	ProviderAPIKey        string        `env:"PROVIDER_API_KEY"`
	ProviderTimeout       time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
	CompletionMaxTokens   int           `env:"COMPLETION_MAX_TOKENS" envDefault:"2000"`
	CompletionTemperature float32       `env:"COMPLETION_TEMPERATURE" envDefault:"0.7"`
	ContextWindowSize     int           `env:"CONTEXT_WINDOW_SIZE" envDefault:"10"`
	DefaultModel          string        `env:"DEFAULT_MODEL" envDefault:"gpt-3.5-turbo"`
	ModelsConfigPath      string        `env:"MODELS_CONFIG_PATH" envDefault:"config/models.yml"`
	Models                *ModelCatalog `env:"-"`

	// Auth
	AuthEnabled         bool          `env:"AUTH_ENABLED" envDefault:"false"`
	AuthIssuer          string        `env:"AUTH_ISSUER"`
	AuthAudience        string        `env:"AUTH_AUDIENCE"`
	AuthJWKSURL         string        `env:"AUTH_JWKS_URL"`
	AuthRefreshInterval time.Duration `env:"AUTH_REFRESH_INTERVAL" envDefault:"5m"`
	DevPrincipalHeader  string        `env:"DEV_PRINCIPAL_HEADER" envDefault:"X-User-Id"`

	// Observability / Logging
	OTELEnabled        bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders        string `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName        string `env:"SERVICE_NAME" envDefault:"session-api"`
	ServiceNamespace   string `env:"SERVICE_NAMESPACE" envDefault:"jan"`
	Environment        string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string `env:"LOG_FORMAT" envDefault:"console"`
	MetricsRefreshCron string `env:"METRICS_REFRESH_CRON" envDefault:"*/5 * * * *"`
}

// LoadEnvFiles overlays .env files from the working directory and its parent. Missing files are
// ignored.
func LoadEnvFiles() {
	for _, path := range []string{".env", "../.env"} {
		_ = godotenv.Overload(path)
	}
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	models, err := LoadModelCatalog(cfg.ModelsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load models config: %w", err)
	}
	cfg.Models = models

	globalConfig = cfg
	return cfg, nil
}

func (c *Config) normalize() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.LockBackend = strings.ToLower(strings.TrimSpace(c.LockBackend))
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)

	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DBPostgresqlWriteDSN == "" {
			return errors.New("DB_POSTGRESQL_WRITE_DSN is required when STORE_BACKEND=postgres")
		}
	case StoreBackendMemory:
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.LockBackend {
	case LockBackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when LOCK_BACKEND=redis")
		}
		if c.LockTTL <= c.ProviderTimeout {
			return fmt.Errorf("LOCK_TTL (%s) must exceed PROVIDER_TIMEOUT (%s)", c.LockTTL, c.ProviderTimeout)
		}
	case LockBackendLocal:
	default:
		return fmt.Errorf("unsupported LOCK_BACKEND %q", c.LockBackend)
	}

	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if c.CompletionMaxTokens <= 0 {
		return errors.New("COMPLETION_MAX_TOKENS must be positive")
	}
	if c.ContextWindowSize < 1 {
		return errors.New("CONTEXT_WINDOW_SIZE must be at least 1")
	}
	if _, err := conversation.ParseModelID(c.DefaultModel); err != nil {
		return fmt.Errorf("invalid DEFAULT_MODEL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.ProviderBaseURL); err != nil {
		return fmt.Errorf("invalid PROVIDER_BASE_URL: %w", err)
	}

	if c.AuthEnabled {
		if c.AuthJWKSURL == "" || c.AuthIssuer == "" {
			return errors.New("AUTH_JWKS_URL and AUTH_ISSUER are required when AUTH_ENABLED=true")
		}
		if _, err := url.ParseRequestURI(c.AuthJWKSURL); err != nil {
			return fmt.Errorf("invalid AUTH_JWKS_URL: %w", err)
		}
	}
	return nil
}

// GetGlobal returns the config produced by the last successful Load.
func GetGlobal() *Config {
	return globalConfig
}
