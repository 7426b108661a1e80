package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	AccessTokenTTL time.Duration

	IdempotencyTTL     time.Duration
	BodyLimitBytes     int64
	ScanRateLimit      string
	CatalogCacheTTL    time.Duration
	ForecastCacheTTL   time.Duration
	SessionRecoveryTTL time.Duration

	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBStatementCacheCapacity int

	WebhookURL              string
	WebhookSecret           string
	WebhookDeliveryEnabled  bool
	WebhookRequestTimeout   time.Duration
	WebhookAllowInsecureTLS bool

	CircuitWebhookMinReq      int
	CircuitWebhookFailureRate float64
	CircuitWebhookOpenFor     time.Duration
	RetryBase                 time.Duration
	RetryMaxAttempts          int
	RetryJitterPercent        float64
	OutboundTimeout           time.Duration

	TaskQueueConcurrency int
	TaskMaxRetry         int
	TaskTimeout          time.Duration
	LockTTL              time.Duration
	LockRetryBackoff     time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "12h"),

		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		BodyLimitBytes:     int64(intOrDefault(k.Int("BODY_LIMIT_BYTES"), 1<<20)),
		ScanRateLimit:      valueOrDefault(k.String("SCAN_RATE_LIMIT"), "30-S"),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		ForecastCacheTTL:   parseDuration(k.String("FORECAST_CACHE_TTL"), "1m"),
		SessionRecoveryTTL: parseDuration(k.String("SESSION_RECOVERY_TTL"), "24h"),

		DBMaxOpenConns:           k.Int("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:           k.Int("DB_MAX_IDLE_CONNS"),
		DBStatementCacheCapacity: intOrDefault(k.Int("DB_STATEMENT_CACHE_CAPACITY"), -1),

		WebhookURL:              k.String("WEBHOOK_URL"),
		WebhookSecret:           k.String("WEBHOOK_SECRET"),
		WebhookDeliveryEnabled:  parseBool(k.String("WEBHOOK_DELIVERY_ENABLED")),
		WebhookRequestTimeout:   parseDuration(k.String("WEBHOOK_REQUEST_TIMEOUT"), "5s"),
		WebhookAllowInsecureTLS: parseBool(k.String("WEBHOOK_ALLOW_INSECURE_TLS")),

		CircuitWebhookMinReq:      intOrDefault(k.Int("CIRCUIT_WEBHOOK_MIN_REQ"), 5),
		CircuitWebhookFailureRate: floatOrDefault(k.Float64("CIRCUIT_WEBHOOK_FAILURE_RATE"), 0.5),
		CircuitWebhookOpenFor:     parseDuration(k.String("CIRCUIT_WEBHOOK_OPEN_FOR"), "30s"),
		RetryBase:                 parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryMaxAttempts:          intOrDefault(k.Int("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent:        floatOrDefault(k.Float64("RETRY_JITTER_PERCENT"), 0.2),
		OutboundTimeout:           parseDuration(k.String("OUTBOUND_TIMEOUT"), "10s"),

		TaskQueueConcurrency: intOrDefault(k.Int("TASK_QUEUE_CONCURRENCY"), 10),
		TaskMaxRetry:         intOrDefault(k.Int("TASK_MAX_RETRY"), 6),
		TaskTimeout:          parseDuration(k.String("TASK_TIMEOUT"), "30s"),
		LockTTL:              parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:     parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
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
	if cfg.WebhookDeliveryEnabled && cfg.WebhookURL == "" {
		return nil, errors.New("WEBHOOK_URL is required when webhook delivery is enabled")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func intOrDefault(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func floatOrDefault(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	return value
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

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
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
