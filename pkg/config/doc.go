// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	MINERVA_HOST="0.0.0.0"
//	MINERVA_PORT="8080"
//	MINERVA_HEALTH_PORT="9090"
//	MINERVA_READ_TIMEOUT="15s"
//	MINERVA_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	MINERVA_POSTGRES_URL="postgres://localhost/minerva"
//	MINERVA_POSTGRES_REPLICA_URLS="postgres://replica-1/minerva,postgres://replica-2/minerva"
//	MINERVA_POSTGRES_MAX_CONNS="25"
//	MINERVA_POSTGRES_MIN_CONNS="5"
//
// Decision cache settings:
//
//	MINERVA_CACHE_ENABLED="true"
//	MINERVA_CACHE_MAX_ENTRIES="4096"
//	MINERVA_CACHE_TTL="30s"
//	MINERVA_CACHE_PURGE_SCHEDULE="@hourly"
//	MINERVA_REDIS_ADDR="localhost:6379"
//
// Observability settings:
//
//	MINERVA_LOG_LEVEL="info"  # debug, info, warn, error
//	MINERVA_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/db: Uses database configuration
//   - pkg/observability: Uses observability configuration
package config
