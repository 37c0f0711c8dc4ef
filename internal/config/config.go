// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Port   int
	DBPath string

	GoogleClientID     string
	GoogleClientSecret string
	OAuthCallbackURL   string

	// StateSecret signs the short-lived OAuth state parameter.
	StateSecret string

	// FrontendURL is the allowed CORS origin.
	FrontendURL string

	// Optional: provision an admin account at startup when both are set.
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from environment variables and validates
// required fields.
func Load() (Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	cfg := Config{
		Port:               port,
		DBPath:             getEnv("DB_PATH", "data/issues.db"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthCallbackURL:   getEnv("OAUTH_CALLBACK_URL", ""),
		StateSecret:        getEnv("STATE_SECRET", ""),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		AdminEmail:         getEnv("ADMIN_EMAIL", ""),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
	}

	if cfg.OAuthCallbackURL == "" {
		cfg.OAuthCallbackURL = fmt.Sprintf("http://localhost:%d/api/auth/complete/google-oauth2", port)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.StateSecret == "" {
		return fmt.Errorf("STATE_SECRET is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}
