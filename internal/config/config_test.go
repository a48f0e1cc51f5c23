package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 72*time.Hour, cfg.CountdownTTL)
	assert.Equal(t, time.Minute, cfg.CountdownPollInterval)
	assert.Equal(t, 15*time.Second, cfg.ExternalCallTimeout)
	assert.Equal(t, MailDriverLog, cfg.MailDriver)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.NotEmpty(t, cfg.WebhookSecret)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.AllowedOrigins)
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("WEBHOOK_SECRET", "")
	_, err = Load()
	assert.ErrorContains(t, err, "WEBHOOK_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("COUNTDOWN_TTL", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("KYC_DRIVER", "http")
	t.Setenv("KYC_BASE_URL", "https://kyc.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.CountdownTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, KYCDriverHTTP, cfg.KYCDriver)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", "development")

	t.Setenv("COUNTDOWN_TTL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "COUNTDOWN_TTL")

	t.Setenv("COUNTDOWN_TTL", "72h")
	t.Setenv("STORAGE_DRIVER", "mongo")
	_, err = Load()
	assert.ErrorContains(t, err, "STORAGE_DRIVER")
}
