package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	// Backend project
	SupabaseURL     string
	SupabaseAnonKey string
	HTTPTimeout     time.Duration

	// Local secure store
	DatabaseType  string
	DatabasePath  string
	DatabaseURL   string
	SessionSecret string

	RecordingsBucket string

	// Parent notification email (optional)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string

	Debug bool
}

const (
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultRecordingsBucket = "recordings"
	DefaultDatabasePath     = "./kidnector.db"
)

// LoadFromEnv reads configuration from environment variables with sensible defaults.
// The backend URL and anon key are required.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		SupabaseURL:      firstEnv("KIDNECTOR_SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL"),
		SupabaseAnonKey:  firstEnv("KIDNECTOR_SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_ANON_KEY"),
		HTTPTimeout:      DefaultHTTPTimeout,
		DatabaseType:     strings.ToLower(getEnv("KIDNECTOR_DB_TYPE", "sqlite")),
		DatabasePath:     getEnv("KIDNECTOR_DB_PATH", DefaultDatabasePath),
		DatabaseURL:      os.Getenv("KIDNECTOR_DB_URL"),
		SessionSecret:    os.Getenv("KIDNECTOR_SESSION_SECRET"),
		RecordingsBucket: getEnv("KIDNECTOR_RECORDINGS_BUCKET", DefaultRecordingsBucket),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:     os.Getenv("SES_FROM_EMAIL"),
		SESFromName:      getEnv("SES_FROM_NAME", "Kidnector"),
	}

	if cfg.SupabaseURL == "" {
		return nil, fmt.Errorf("KIDNECTOR_SUPABASE_URL is required")
	}
	if cfg.SupabaseAnonKey == "" {
		return nil, fmt.Errorf("KIDNECTOR_SUPABASE_ANON_KEY is required")
	}

	if v := os.Getenv("KIDNECTOR_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KIDNECTOR_HTTP_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("KIDNECTOR_HTTP_TIMEOUT must be positive")
		}
		cfg.HTTPTimeout = d
	}

	switch cfg.DatabaseType {
	case "sqlite", "sqlite3":
	case "postgres", "postgresql", "mysql":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("KIDNECTOR_DB_URL is required when KIDNECTOR_DB_TYPE is %s", cfg.DatabaseType)
		}
	default:
		return nil, fmt.Errorf("unsupported KIDNECTOR_DB_TYPE: %s", cfg.DatabaseType)
	}

	if v := os.Getenv("KIDNECTOR_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KIDNECTOR_DEBUG: %w", err)
		}
		cfg.Debug = debug
	}

	return cfg, nil
}

// EmailEnabled reports whether a sender address is configured
func (c *Config) EmailEnabled() bool {
	return c.SESFromEmail != ""
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
