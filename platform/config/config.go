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

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides settings for the Redis cache tier.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	IsRedisEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetPostalRefreshCron() string
	GetPostalRefreshCountries() []string
}

// ProviderConfig provides settings for the upstream geocoding provider.
type ProviderConfig interface {
	GetProviderProfilePath() string
	GetProviderAPIKey() string
	GetProviderTimeout() time.Duration
	GetProviderRateLimit() float64
}

// CacheConfig provides settings for provider response caching.
type CacheConfig interface {
	GetCacheTTL() time.Duration
	GetCacheCleanupInterval() time.Duration
}

// ResolverConfig provides settings for location resolution sessions.
type ResolverConfig interface {
	GetSearchDebounce() time.Duration
	GetSessionTTL() time.Duration
	GetSessionSweepInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	JWTAccessSecret        string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	PostalRefreshCron      string
	PostalRefreshCountries []string
	ProviderProfilePath    string
	ProviderAPIKey         string
	ProviderTimeout        time.Duration
	ProviderRateLimit      float64
	CacheTTL               time.Duration
	CacheCleanupInterval   time.Duration
	SearchDebounce         time.Duration
	SessionTTL             time.Duration
	SessionSweepInterval   time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig implementation
func (c *Config) GetRedisURL() string      { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) IsRedisEnabled() bool     { return c.RedisURL != "" }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetPostalRefreshCron() string       { return c.PostalRefreshCron }
func (c *Config) GetPostalRefreshCountries() []string { return c.PostalRefreshCountries }

// ProviderConfig implementation
func (c *Config) GetProviderProfilePath() string    { return c.ProviderProfilePath }
func (c *Config) GetProviderAPIKey() string         { return c.ProviderAPIKey }
func (c *Config) GetProviderTimeout() time.Duration { return c.ProviderTimeout }
func (c *Config) GetProviderRateLimit() float64     { return c.ProviderRateLimit }

// CacheConfig implementation
func (c *Config) GetCacheTTL() time.Duration             { return c.CacheTTL }
func (c *Config) GetCacheCleanupInterval() time.Duration { return c.CacheCleanupInterval }

// ResolverConfig implementation
func (c *Config) GetSearchDebounce() time.Duration       { return c.SearchDebounce }
func (c *Config) GetSessionTTL() time.Duration           { return c.SessionTTL }
func (c *Config) GetSessionSweepInterval() time.Duration { return c.SessionSweepInterval }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		JWTAccessSecret:        getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		PostalRefreshCron:      getEnv("POSTAL_REFRESH_CRON", "0 3 * * *"),
		PostalRefreshCountries: splitCSV(getEnv("POSTAL_REFRESH_COUNTRIES", "ID")),
		ProviderProfilePath:    getEnv("PROVIDER_PROFILE_PATH", ""),
		ProviderAPIKey:         getEnv("PROVIDER_API_KEY", ""),
		ProviderTimeout:        mustDuration(getEnv("PROVIDER_TIMEOUT", "10s")),
		ProviderRateLimit:      mustFloat(getEnv("PROVIDER_RATE_LIMIT", "10")),
		CacheTTL:               mustDuration(getEnv("CACHE_TTL", "15m")),
		CacheCleanupInterval:   mustDuration(getEnv("CACHE_CLEANUP_INTERVAL", "5m")),
		SearchDebounce:         mustDuration(getEnv("SEARCH_DEBOUNCE", "300ms")),
		SessionTTL:             mustDuration(getEnv("SESSION_TTL", "30m")),
		SessionSweepInterval:   mustDuration(getEnv("SESSION_SWEEP_INTERVAL", "1m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("PROVIDER_TIMEOUT must be a positive duration")
	}
	if cfg.SearchDebounce < 300*time.Millisecond {
		return nil, fmt.Errorf("SEARCH_DEBOUNCE must be at least 300ms")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
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
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
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
