package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wardenhq/warden/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Authorization decision configuration
	Authz AuthzConfig

	// Authorization authority client configuration
	Authority AuthorityConfig

	// Catalog registration configuration
	Registration RegistrationConfig

	// Audit sink configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
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

// AuthzConfig holds decision-engine policy switches
type AuthzConfig struct {
	// Enabled is the master kill-switch; on by default.
	Enabled bool

	// ResourceScopedEnabled turns resource-path templates into live checks.
	ResourceScopedEnabled bool

	// FailOpenOnError allows requests when the authority is unreachable.
	FailOpenOnError bool
}

// AuthorityConfig holds the authorization authority client settings
type AuthorityConfig struct {
	// BaseURL of the authority; empty disables remote checks entirely.
	BaseURL string
	Timeout time.Duration

	// Permission resolution cache
	CacheFallbackTTL time.Duration
	CacheMaxTTL      time.Duration
	L1CacheSize      int

	// RedisURL enables the shared L2 cache when set.
	RedisURL string
}

// RegistrationConfig holds catalog registration settings
type RegistrationConfig struct {
	// ServiceName identifies this service to the authority.
	ServiceName string

	// CatalogPath points at the YAML permission catalog.
	CatalogPath string

	StartupDelay time.Duration
	MaxAttempts  int
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	// FilePath enables the file sink when set.
	FilePath string

	// PostgresURL enables the database sink when set.
	PostgresURL string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Authz:         loadAuthzConfig(),
		Authority:     loadAuthorityConfig(),
		Registration:  loadRegistrationConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WARDEN_HOST", "0.0.0.0"),
		Port:            getEnv("WARDEN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("WARDEN_HEALTH_PORT", "9090"),
	}
}

// loadAuthzConfig loads decision-engine configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		Enabled:               getEnvBool("WARDEN_AUTHZ_ENABLED", true),
		ResourceScopedEnabled: getEnvBool("WARDEN_RESOURCE_SCOPED_ENABLED", false),
		FailOpenOnError:       getEnvBool("WARDEN_FAIL_OPEN_ON_ERROR", false),
	}
}

// loadAuthorityConfig loads authority client configuration from environment
func loadAuthorityConfig() AuthorityConfig {
	return AuthorityConfig{
		BaseURL:          getEnv("WARDEN_AUTHORITY_URL", ""),
		Timeout:          getEnvDuration("WARDEN_AUTHORITY_TIMEOUT", 10*time.Second),
		CacheFallbackTTL: getEnvDuration("WARDEN_PERMISSION_CACHE_TTL", 30*time.Second),
		CacheMaxTTL:      getEnvDuration("WARDEN_PERMISSION_CACHE_MAX_TTL", 5*time.Minute),
		L1CacheSize:      getEnvInt("WARDEN_PERMISSION_CACHE_SIZE", 1024),
		RedisURL:         getEnv("WARDEN_REDIS_URL", ""),
	}
}

// loadRegistrationConfig loads registration configuration from environment
func loadRegistrationConfig() RegistrationConfig {
	return RegistrationConfig{
		ServiceName:  getEnv("WARDEN_SERVICE_NAME", ""),
		CatalogPath:  getEnv("WARDEN_CATALOG_PATH", ""),
		StartupDelay: getEnvDuration("WARDEN_REGISTRATION_STARTUP_DELAY", 2*time.Second),
		MaxAttempts:  getEnvInt("WARDEN_REGISTRATION_MAX_ATTEMPTS", 10),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		FilePath:    getEnv("WARDEN_AUDIT_FILE_PATH", ""),
		PostgresURL: getEnv("WARDEN_AUDIT_POSTGRES_URL", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("WARDEN_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("WARDEN_METRICS_ENABLED", true),
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

	if c.Authority.Timeout <= 0 {
		return fmt.Errorf("authority timeout must be positive")
	}
	if c.Authority.L1CacheSize <= 0 {
		return fmt.Errorf("permission cache size must be positive")
	}
	if c.Authority.CacheMaxTTL < c.Authority.CacheFallbackTTL {
		return fmt.Errorf("permission cache max TTL must be at least the fallback TTL")
	}

	// Resource-scoped checks and fail-open only matter with an authority.
	if c.Authority.BaseURL == "" {
		if c.Authz.ResourceScopedEnabled {
			return fmt.Errorf("resource-scoped authorization requires an authority URL")
		}
		if c.Registration.CatalogPath != "" {
			return fmt.Errorf("catalog registration requires an authority URL")
		}
	}

	if c.Registration.CatalogPath != "" {
		if c.Registration.ServiceName == "" {
			return fmt.Errorf("service name is required for catalog registration")
		}
		if c.Registration.MaxAttempts <= 0 {
			return fmt.Errorf("registration max attempts must be positive")
		}
	}

	return nil
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
