// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/walletguard/walletguard/internal/security"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Model scorer
	ScorerURL string // External AML model service (optional, rule-only if not set)

	// Risk thresholds. The decision cut points are tunable per deployment;
	// the MEDIUM display band is not.
	AllowMax   int // highest score that still maps below REQUIRE_CONFIRM
	ConfirmMin int // lowest score that maps to REQUIRE_CONFIRM
	BlockMin   int // lowest score that maps to BLOCK

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint for traces (optional)

	// Security
	RateLimitRPM   int
	AllowedOrigins []string
	AdminSecret    string // Admin API secret (optional in development)
}

// Defaults
const (
	DefaultPort       = "8080"
	DefaultEnv        = "development"
	DefaultLogLevel   = "info"
	DefaultRateLimit  = 120
	DefaultAllowMax   = 69
	DefaultConfirmMin = 70
	DefaultBlockMin   = 90
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", DefaultPort),
		Env:          getEnv("ENV", DefaultEnv),
		LogLevel:     getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:  os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		ScorerURL:    os.Getenv("SCORER_URL"),   // Optional, rule-only if not set
		AllowMax:     getEnvInt("RISK_ALLOW_MAX", DefaultAllowMax),
		ConfirmMin:   getEnvInt("RISK_CONFIRM_MIN", DefaultConfirmMin),
		BlockMin:     getEnvInt("RISK_BLOCK_MIN", DefaultBlockMin),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		RateLimitRPM: getEnvInt("RATE_LIMIT_RPM", DefaultRateLimit),
		AdminSecret:  os.Getenv("ADMIN_SECRET"),
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitAndTrim(origins)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.AllowMax >= c.ConfirmMin {
		return fmt.Errorf("RISK_ALLOW_MAX (%d) must be below RISK_CONFIRM_MIN (%d)", c.AllowMax, c.ConfirmMin)
	}
	if c.ConfirmMin > c.BlockMin {
		return fmt.Errorf("RISK_CONFIRM_MIN (%d) must not exceed RISK_BLOCK_MIN (%d)", c.ConfirmMin, c.BlockMin)
	}
	if c.BlockMin > 100 {
		return fmt.Errorf("RISK_BLOCK_MIN (%d) must not exceed 100", c.BlockMin)
	}

	if c.ScorerURL != "" {
		if err := security.ValidateEndpointURL(c.ScorerURL); err != nil {
			// Local model services are common in development
			if c.IsProduction() {
				return fmt.Errorf("SCORER_URL: %w", err)
			}
		}
	}

	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
