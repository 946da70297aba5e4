// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded once at startup.
type Config struct {
	Env      string
	Port     string
	MongoURI string
	DBName   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// VerificationBackend selects the pending-verification store: "redis"
	// (default) or "mongo".
	VerificationBackend string

	// ExposeVerificationCodes echoes plaintext codes in API responses so the
	// flows can be exercised without a delivery gateway. Never allowed in
	// production.
	ExposeVerificationCodes bool

	// SMS gateway settings; SMSEnabled is false when unset.
	SMSEnabled  bool
	SMSAPIPath  string
	SMSUsername string
	SMSPassword string
	SMSSenderID string

	// SMTP settings for email code delivery; SMTPEnabled is false when unset.
	SMTPEnabled bool
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	FromEmail   string

	// Blob storage settings.
	UploadDir     string
	FileSecret    string
	SignedURLTTL  time.Duration
	PublicBaseURL string
}

// IsProduction reports whether the service runs with production hardening.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Load reads configuration from the environment and validates it. Missing
// required settings are an error, not a silent fallback.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		Port:                    getEnv("PORT", "8080"),
		MongoURI:                os.Getenv("MONGO_URI"),
		DBName:                  getEnv("DB_NAME", "veriflow"),
		RedisAddr:               getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		VerificationBackend:     getEnv("VERIFICATION_BACKEND", "redis"),
		ExposeVerificationCodes: getEnv("EXPOSE_VERIFICATION_CODES", "") == "true",
		SMSAPIPath:              os.Getenv("SMS_API_PATH"),
		SMSUsername:             os.Getenv("SMS_USERNAME"),
		SMSPassword:             os.Getenv("SMS_PASSWORD"),
		SMSSenderID:             getEnv("SMS_SENDER_ID", "Veriflow"),
		SMTPHost:                os.Getenv("SMTP_HOST"),
		SMTPUser:                os.Getenv("SMTP_USER"),
		SMTPPass:                os.Getenv("SMTP_PASS"),
		FromEmail:               os.Getenv("FROM_EMAIL"),
		UploadDir:               getEnv("UPLOAD_DIR", "uploads"),
		FileSecret:              os.Getenv("FILE_SIGNING_SECRET"),
		PublicBaseURL:           getEnv("PUBLIC_BASE_URL", ""),
	}

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %v", err)
		}
		cfg.RedisDB = db
	}

	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %v", err)
		}
		cfg.SMTPPort = port
	}

	ttl := getEnv("SIGNED_URL_TTL", "15m")
	signedTTL, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNED_URL_TTL: %v", err)
	}
	cfg.SignedURLTTL = signedTTL

	cfg.SMSEnabled = cfg.SMSAPIPath != "" && cfg.SMSUsername != "" && cfg.SMSPassword != ""
	cfg.SMTPEnabled = cfg.SMTPHost != "" && cfg.SMTPPort != 0 && cfg.FromEmail != ""

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if c.MongoURI == "" {
		if c.IsProduction() {
			return errors.New("MONGO_URI environment variable is required in production")
		}
		c.MongoURI = "mongodb://localhost:27017"
	}
	if c.VerificationBackend != "redis" && c.VerificationBackend != "mongo" {
		return fmt.Errorf("invalid VERIFICATION_BACKEND %q: must be redis or mongo", c.VerificationBackend)
	}
	if c.FileSecret == "" {
		if c.IsProduction() {
			return errors.New("FILE_SIGNING_SECRET environment variable is required in production")
		}
		c.FileSecret = c.JWTSecret
	}
	if c.ExposeVerificationCodes && c.IsProduction() {
		return errors.New("EXPOSE_VERIFICATION_CODES must not be set in production")
	}
	if c.IsProduction() && !c.SMSEnabled && !c.SMTPEnabled {
		return errors.New("at least one code delivery channel (SMS or SMTP) must be configured in production")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
