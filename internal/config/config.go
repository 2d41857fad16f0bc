package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	limiter "github.com/ulule/limiter/v3"
)

// Config holds the store API configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseDriver     string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	IdempotencyTTL     time.Duration
	AuthRateLimit      limiter.Rate
	RunMigrations      bool
	LogFormat          string
	LogLevel           string
	TracingEndpoint    string
}

// ClientConfig holds the terminal storefront configuration.
type ClientConfig struct {
	APIURL      string
	Storage     string
	StorageDir  string
	RedisURL    string
	RedisPrefix string
	LogFormat   string
	LogLevel    string
}

// Storage backends for the storefront session.
const (
	StorageDir    = "dir"
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

func loadEnv() (*koanf.Koanf, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return k, nil
}

// Load reads the API configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	k, err := loadEnv()
	if err != nil {
		return nil, err
	}

	rate, err := limiter.NewRateFromFormatted(valueOrDefault(k.String("AUTH_RATE_LIMIT"), "10-M"))
	if err != nil {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT: %w", err)
	}
	appEnv := valueOrDefault(k.String("APP_ENV"), "development")
	cfg := &Config{
		AppEnv:             appEnv,
		Port:               valueOrDefault(k.String("PORT"), "3001"),
		DatabaseDriver:     strings.ToLower(valueOrDefault(k.String("DATABASE_DRIVER"), "postgres")),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(valueOrDefault(k.String("CORS_ALLOWED_ORIGINS"), "http://localhost:3000")),
		AccessTokenTTL:     parseDuration(k.String("ACCESS_TOKEN_TTL"), "24h"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		AuthRateLimit:      rate,
		RunMigrations:      parseBool(valueOrDefault(k.String("RUN_MIGRATIONS"), "true")),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), defaultLogFormat(appEnv)),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		TracingEndpoint:    strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	switch cfg.DatabaseDriver {
	case "postgres", "mysql":
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER must be postgres or mysql, got %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// LoadClient reads the storefront configuration.
func LoadClient() (*ClientConfig, error) {
	k, err := loadEnv()
	if err != nil {
		return nil, err
	}
	cfg := &ClientConfig{
		APIURL:      strings.TrimRight(valueOrDefault(k.String("SHOP_API_URL"), "http://localhost:3001"), "/"),
		Storage:     strings.ToLower(valueOrDefault(k.String("SHOP_STORAGE"), StorageDir)),
		StorageDir:  strings.TrimSpace(k.String("SHOP_STORAGE_DIR")),
		RedisURL:    k.String("SHOP_REDIS_URL"),
		RedisPrefix: valueOrDefault(k.String("SHOP_REDIS_PREFIX"), "kitstore:"),
		LogFormat:   valueOrDefault(k.String("SHOP_LOG_FORMAT"), "console"),
		LogLevel:    valueOrDefault(k.String("SHOP_LOG_LEVEL"), "warn"),
	}
	switch cfg.Storage {
	case StorageDir:
		if cfg.StorageDir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("SHOP_STORAGE_DIR not set and no user config dir: %w", err)
			}
			cfg.StorageDir = filepath.Join(base, "kitstore")
		}
	case StorageRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("SHOP_REDIS_URL is required when SHOP_STORAGE=redis")
		}
	case StorageMemory:
	default:
		return nil, fmt.Errorf("SHOP_STORAGE must be dir, redis or memory, got %q", cfg.Storage)
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "3001"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func defaultLogFormat(appEnv string) string {
	if appEnv == "development" {
		return "console"
	}
	return "json"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	var cfg *Config
	err := withEnv(env, func() (err error) {
		cfg, err = Load()
		return err
	})
	return cfg, err
}

// LoadClientForTests is LoadForTests for the storefront configuration.
func LoadClientForTests(env map[string]string) (*ClientConfig, error) {
	var cfg *ClientConfig
	err := withEnv(env, func() (err error) {
		cfg, err = LoadClient()
		return err
	})
	return cfg, err
}

func withEnv(env map[string]string, fn func() error) error {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return err
		}
	}
	err := fn()
	restoreErr := restoreEnv(original)
	if err != nil {
		return err
	}
	return restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
