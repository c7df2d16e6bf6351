package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minerva-imaging/minervadb/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig

	// SeedFile is an optional YAML fixture applied after migrations
	SeedFile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// CacheConfig holds authorization decision cache configuration
type CacheConfig struct {
	Enabled       bool
	MaxEntries    int
	TTL           time.Duration
	PurgeSchedule string // cron expression for periodic full purges

	// Redis tier (optional; empty address disables it)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
		SeedFile:      getEnv("MINERVA_SEED_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MINERVA_HOST", "0.0.0.0"),
		Port:            getEnv("MINERVA_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MINERVA_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MINERVA_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MINERVA_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MINERVA_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("MINERVA_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		PrimaryURL:  getEnv("MINERVA_POSTGRES_URL", ""),
		ReplicaURLs: splitURLs(getEnv("MINERVA_POSTGRES_REPLICA_URLS", "")),
		MaxConns:    getEnvInt("MINERVA_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("MINERVA_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("MINERVA_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("MINERVA_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("MINERVA_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

// loadCacheConfig loads decision cache configuration from environment
func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       getEnvBool("MINERVA_CACHE_ENABLED", true),
		MaxEntries:    getEnvInt("MINERVA_CACHE_MAX_ENTRIES", 4096),
		TTL:           getEnvDuration("MINERVA_CACHE_TTL", 30*time.Second),
		PurgeSchedule: getEnv("MINERVA_CACHE_PURGE_SCHEDULE", "@hourly"),
		RedisAddr:     getEnv("MINERVA_REDIS_ADDR", ""),
		RedisPassword: getEnv("MINERVA_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("MINERVA_REDIS_DB", 0),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("MINERVA_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("MINERVA_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.PrimaryURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("postgres max conns (%d) must be >= min conns (%d)",
			c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Cache.Enabled {
		if c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache max entries must be positive")
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache TTL must be positive")
		}
	}

	return nil
}

// splitURLs splits a comma-separated URL list, trimming whitespace
func splitURLs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
