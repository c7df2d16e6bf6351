package config

import (
	"os"
	"testing"
	"time"

	"github.com/minerva-imaging/minervadb/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}
	if got := getEnvDuration("TEST_DURATION_NOT_SET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() = %v, want 1m", got)
	}

	os.Setenv("TEST_DURATION_BAD", "not-a-duration")
	defer os.Unsetenv("TEST_DURATION_BAD")
	if got := getEnvDuration("TEST_DURATION_BAD", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() = %v, want default for unparseable value", got)
	}
}

// TestSplitURLs tests replica URL list parsing
func TestSplitURLs(t *testing.T) {
	if got := splitURLs(""); got != nil {
		t.Errorf("splitURLs(\"\") = %v, want nil", got)
	}

	got := splitURLs("postgres://a/db, postgres://b/db ,")
	if len(got) != 2 || got[0] != "postgres://a/db" || got[1] != "postgres://b/db" {
		t.Errorf("splitURLs() = %v", got)
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"bogus", observability.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// TestLoadConfig tests full configuration loading and validation
func TestLoadConfig(t *testing.T) {
	os.Setenv("MINERVA_POSTGRES_URL", "postgres://localhost/minerva_test")
	defer os.Unsetenv("MINERVA_POSTGRES_URL")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" || cfg.Server.HealthPort != "9090" {
		t.Errorf("Unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Database.PrimaryURL != "postgres://localhost/minerva_test" {
		t.Errorf("Unexpected database URL: %s", cfg.Database.PrimaryURL)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Unexpected cache defaults: %+v", cfg.Cache)
	}
}

// TestValidate tests configuration validation failures
func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				PrimaryURL: "postgres://localhost/minerva",
				MaxConns:   25,
				MinConns:   5,
			},
			Cache: CacheConfig{Enabled: true, MaxEntries: 100, TTL: time.Second},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}

	cfg := base()
	cfg.Database.PrimaryURL = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for missing postgres URL")
	}

	cfg = base()
	cfg.Server.HealthPort = cfg.Server.Port
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for colliding ports")
	}

	cfg = base()
	cfg.Database.MinConns = 50
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for min conns exceeding max conns")
	}

	cfg = base()
	cfg.Cache.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero cache TTL with cache enabled")
	}
}
