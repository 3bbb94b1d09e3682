package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		setEnv(t, key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "SCORER_URL",
		"RISK_ALLOW_MAX", "RISK_CONFIRM_MIN", "RISK_BLOCK_MIN",
		"RATE_LIMIT_RPM", "ALLOWED_ORIGINS", "ADMIN_SECRET")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultAllowMax, cfg.AllowMax)
	assert.Equal(t, DefaultConfirmMin, cfg.ConfirmMin)
	assert.Equal(t, DefaultBlockMin, cfg.BlockMin)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimitRPM)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.ScorerURL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setEnv(t, "PORT", "9090")
	setEnv(t, "RISK_ALLOW_MAX", "49")
	setEnv(t, "RISK_CONFIRM_MIN", "50")
	setEnv(t, "RISK_BLOCK_MIN", "70")
	setEnv(t, "RATE_LIMIT_RPM", "600")
	setEnv(t, "ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 49, cfg.AllowMax)
	assert.Equal(t, 50, cfg.ConfirmMin)
	assert.Equal(t, 70, cfg.BlockMin)
	assert.Equal(t, 600, cfg.RateLimitRPM)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoad_BadThresholdOrdering(t *testing.T) {
	setEnv(t, "RISK_ALLOW_MAX", "80")
	setEnv(t, "RISK_CONFIRM_MIN", "70")
	setEnv(t, "RISK_BLOCK_MIN", "90")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_Thresholds(t *testing.T) {
	base := Config{AllowMax: 69, ConfirmMin: 70, BlockMin: 90}
	require.NoError(t, base.Validate())

	equalCut := base
	equalCut.AllowMax = 70
	assert.Error(t, equalCut.Validate(), "allow-max must be strictly below confirm-min")

	inverted := base
	inverted.ConfirmMin = 95
	assert.Error(t, inverted.Validate(), "confirm-min must not exceed block-min")

	overMax := base
	overMax.ConfirmMin = 101
	overMax.BlockMin = 110
	assert.Error(t, overMax.Validate(), "block-min must not exceed 100")

	collapsed := base
	collapsed.ConfirmMin = 90
	assert.NoError(t, collapsed.Validate(), "confirm-min == block-min disables the confirm band")
}

func TestValidate_ScorerURL(t *testing.T) {
	dev := Config{AllowMax: 69, ConfirmMin: 70, BlockMin: 90,
		Env: "development", ScorerURL: "http://127.0.0.1:5000"}
	assert.NoError(t, dev.Validate(), "local scorer allowed in development")

	prod := dev
	prod.Env = "production"
	prod.AdminSecret = "secret"
	assert.Error(t, prod.Validate(), "loopback scorer rejected in production")

	prod.ScorerURL = "https://8.8.8.8"
	assert.NoError(t, prod.Validate())
}

func TestValidate_AdminSecretRequiredInProduction(t *testing.T) {
	cfg := Config{AllowMax: 69, ConfirmMin: 70, BlockMin: 90, Env: "production"}
	assert.Error(t, cfg.Validate())

	cfg.AdminSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestGetEnvInt_Invalid(t *testing.T) {
	setEnv(t, "RISK_BLOCK_MIN", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBlockMin, cfg.BlockMin, "unparseable values fall back to the default")
}
