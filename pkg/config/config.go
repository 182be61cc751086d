// Package config provides environment-based configuration for the kinship service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the kinship service.
type Config struct {
	// Database configuration
	DatabaseDSN string

	// Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Server configuration
	APIHost string
	APIPort int

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Mail configuration for invitation delivery
	Mail MailConfig

	// Cleanup configuration
	Cleanup CleanupConfig

	// SeedOverridesPath optionally points at a YAML file of relationship-type
	// overrides applied during seeding.
	SeedOverridesPath string
}

// MailConfig holds settings for outbound invitation email via SES.
type MailConfig struct {
	// Enabled gates all outbound mail; when false no email is sent.
	Enabled bool
	// Region is the AWS region for SES.
	Region string
	// FromAddress must be a verified SES identity.
	FromAddress string
	FromName    string
	// BaseURL is the public web origin used to build invitation links.
	BaseURL string
}

// CleanupConfig holds settings for the background maintenance loop.
type CleanupConfig struct {
	// SweepInterval is how often pending invitations past their deadline are
	// transitioned to expired.
	SweepInterval time.Duration
	// EdgeRetention is how long deactivated edges are kept before purge.
	EdgeRetention time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Mail.Enabled && c.Mail.FromAddress == "" {
		return fmt.Errorf("MAIL_FROM_ADDRESS is required when mail is enabled")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg := load()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret-key-min-32-chars"
	}
	return cfg
}

func load() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/kinship?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		APIPort:         getIntEnv("API_PORT", 8080),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Mail: MailConfig{
			Enabled:     getBoolEnv("MAIL_ENABLED", false),
			Region:      getEnv("MAIL_AWS_REGION", "us-east-1"),
			FromAddress: getEnv("MAIL_FROM_ADDRESS", ""),
			FromName:    getEnv("MAIL_FROM_NAME", "Kinship"),
			BaseURL:     getEnv("MAIL_BASE_URL", "http://localhost:3000"),
		},
		Cleanup: CleanupConfig{
			SweepInterval: getDurationEnv("CLEANUP_SWEEP_INTERVAL", time.Hour),
			EdgeRetention: getDurationEnv("CLEANUP_EDGE_RETENTION", 365*24*time.Hour),
		},
		SeedOverridesPath: getEnv("SEED_OVERRIDES_PATH", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
