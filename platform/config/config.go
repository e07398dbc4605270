// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selected by the DATABASE_URL scheme.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendKV       = "kvdb"
)

const kvScheme = "kvdb://"

// =============================================================================
// Consumer-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
	GetStoreBackend() string
	GetKVPath() string
	GetMigrationsEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetEnv() string
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetDebugHeaders() bool
	GetShutdownTimeout() time.Duration
}

// RateLimitConfig provides settings for the per-IP rate limiter.
type RateLimitConfig interface {
	GetRateLimitRPS() float64
	GetRateLimitBurst() int
}

// IdempotencyConfig provides settings for Idempotency-Key replay protection.
type IdempotencyConfig interface {
	GetRedisURL() string
	GetIdempotencyTTL() time.Duration
	IsIdempotencyEnabled() bool
}

// TracingConfig provides OpenTelemetry settings.
type TracingConfig interface {
	GetOTelServiceName() string
	GetOTLPEndpoint() string
	IsTracingExportEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	MigrationsEnabled bool
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	RateLimitRPS      float64
	RateLimitBurst    int
	DebugHeaders      bool
	RedisURL          string
	IdempotencyTTL    time.Duration
	OTelServiceName   string
	OTLPEndpoint      string
	ShutdownTimeout   time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetMigrationsEnabled() bool { return c.MigrationsEnabled }
func (c *Config) GetKVPath() string          { return strings.TrimPrefix(c.DatabaseURL, kvScheme) }
func (c *Config) GetStoreBackend() string {
	if strings.HasPrefix(c.DatabaseURL, kvScheme) {
		return StoreBackendKV
	}
	return StoreBackendPostgres
}

// HTTPConfig implementation
func (c *Config) GetEnv() string                    { return c.Env }
func (c *Config) GetHTTPAddr() string               { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool             { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string          { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool           { return c.CORSAllowCreds }
func (c *Config) GetDebugHeaders() bool             { return c.DebugHeaders }
func (c *Config) GetShutdownTimeout() time.Duration { return c.ShutdownTimeout }

// RateLimitConfig implementation
func (c *Config) GetRateLimitRPS() float64 { return c.RateLimitRPS }
func (c *Config) GetRateLimitBurst() int   { return c.RateLimitBurst }

// IdempotencyConfig implementation
func (c *Config) GetRedisURL() string              { return c.RedisURL }
func (c *Config) GetIdempotencyTTL() time.Duration { return c.IdempotencyTTL }
func (c *Config) IsIdempotencyEnabled() bool       { return c.RedisURL != "" }

// TracingConfig implementation
func (c *Config) GetOTelServiceName() string   { return c.OTelServiceName }
func (c *Config) GetOTLPEndpoint() string      { return c.OTLPEndpoint }
func (c *Config) IsTracingExportEnabled() bool { return c.OTLPEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "*"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) || len(corsOrigins) == 0 {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       strings.TrimSpace(getEnv("DATABASE_URL", "")),
		MigrationsEnabled: strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RateLimitRPS:      mustFloat(getEnv("RATE_LIMIT_RPS", "20")),
		RateLimitBurst:    mustInt(getEnv("RATE_LIMIT_BURST", "40")),
		DebugHeaders:      strings.EqualFold(getEnv("DEBUG_HEADERS", "false"), "true"),
		RedisURL:          getEnv("REDIS_URL", ""),
		IdempotencyTTL:    mustDuration(getEnv("IDEMPOTENCY_TTL", "24h")),
		OTelServiceName:   getEnv("OTEL_SERVICE_NAME", "guest-registry"),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ShutdownTimeout:   mustDuration(getEnv("SHUTDOWN_TIMEOUT", "10s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if !hasSupportedScheme(cfg.DatabaseURL) {
		return nil, fmt.Errorf("DATABASE_URL must use postgres://, postgresql:// or kvdb://")
	}
	if cfg.GetStoreBackend() == StoreBackendKV && cfg.GetKVPath() == "" {
		return nil, fmt.Errorf("DATABASE_URL kvdb:// requires a file path")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if cfg.IdempotencyTTL <= 0 {
		return nil, fmt.Errorf("IDEMPOTENCY_TTL must be a positive duration")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	return cfg, nil
}

func hasSupportedScheme(dsn string) bool {
	for _, scheme := range []string{"postgres://", "postgresql://", kvScheme} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
