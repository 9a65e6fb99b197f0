package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int
	DatabaseURL    string
	JWTSecret      string
	AppEnv         string
	LogLevel       string
	AllowedOrigins []string

	Storage StorageConfig

	EventRetention         time.Duration
	EventRetentionSchedule string
}

// StorageConfig selects and configures where uploaded images live.
type StorageConfig struct {
	Type      string // local or s3
	UploadDir string
	BaseURL   string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// ErrMissingSecret is returned when JWT_SECRET is not set.
var ErrMissingSecret = errors.New("JWT_SECRET must be set")

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	retention, err := time.ParseDuration(getEnv("EVENT_RETENTION", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_RETENTION: %w", err)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("invalid EVENT_RETENTION: must be positive")
	}

	cfg := &Config{
		ServerPort:     port,
		DatabaseURL:    getEnv("DATABASE_URL", "file:renter.db"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		Storage: StorageConfig{
			Type:      strings.ToLower(getEnv("STORAGE_TYPE", "local")),
			UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
			BaseURL:   getEnv("UPLOAD_BASE_URL", "/uploads"),
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
		EventRetention:         retention,
		EventRetentionSchedule: getEnv("EVENT_RETENTION_SCHEDULE", "@daily"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	switch cfg.Storage.Type {
	case "local":
	case "s3":
		if cfg.Storage.Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_TYPE=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_TYPE %q", cfg.Storage.Type)
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
