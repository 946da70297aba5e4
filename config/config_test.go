package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MONGO_URI", "")
	t.Setenv("EXPOSE_VERIFICATION_CODES", "")
	t.Setenv("VERIFICATION_BACKEND", "")
	t.Setenv("FILE_SIGNING_SECRET", "")
	t.Setenv("SMS_API_PATH", "")
	t.Setenv("SMS_USERNAME", "")
	t.Setenv("SMS_PASSWORD", "")
	t.Setenv("SMTP_HOST", "")
	t.Setenv("SMTP_PORT", "")
	t.Setenv("FROM_EMAIL", "")
	t.Setenv("SIGNED_URL_TTL", "")
}

func TestLoadDevelopmentDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "veriflow", cfg.DBName)
	assert.Equal(t, "redis", cfg.VerificationBackend)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.SMSEnabled)
	assert.False(t, cfg.SMTPEnabled)

	// Development falls back to the JWT secret for URL signing.
	assert.Equal(t, cfg.JWTSecret, cfg.FileSecret)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("VERIFICATION_BACKEND", "memcached")

	_, err := Load()
	assert.Error(t, err)
}

func TestProductionRequiresMongoURI(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("FILE_SIGNING_SECRET", "file-secret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("FROM_EMAIL", "noreply@example.com")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MONGO_URI", "mongodb://db:27017")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.SMTPEnabled)
}

func TestProductionRejectsCodeExposure(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("FILE_SIGNING_SECRET", "file-secret")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_PORT", "587")
	t.Setenv("FROM_EMAIL", "noreply@example.com")
	t.Setenv("EXPOSE_VERIFICATION_CODES", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestProductionRequiresDeliveryChannel(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("FILE_SIGNING_SECRET", "file-secret")

	_, err := Load()
	assert.Error(t, err)

	// SMS credentials alone satisfy the requirement.
	t.Setenv("SMS_API_PATH", "https://sms.example.com/send")
	t.Setenv("SMS_USERNAME", "api-user")
	t.Setenv("SMS_PASSWORD", "api-pass")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.SMSEnabled)
}

func TestLoadParsesSignedURLTTL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SIGNED_URL_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "30m0s", cfg.SignedURLTTL.String())

	t.Setenv("SIGNED_URL_TTL", "soon")
	_, err = Load()
	assert.Error(t, err)
}
