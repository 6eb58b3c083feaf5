// Package config loads runtime configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting the server needs. Each field maps
// to one environment variable.
type Config struct {
	Env                string // "development" or "production"
	Port               int    // HTTP port to listen on
	DBPath             string // SQLite database file
	JWTSecret          string // HMAC secret for signing session tokens
	GitHubClientID     string // OAuth app client id
	GitHubClientSecret string // OAuth app client secret
	GitHubRedirectURL  string // must match the OAuth app's callback URL
	OwnerID            int64  // GitHub id of the instance owner
}

// Production reports whether cookies should carry the Secure flag.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Load reads the environment (after loading .env if present) and
// validates required settings.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := &Config{
		Env:                getenv("APP_ENV", "development"),
		Port:               8080,
		DBPath:             getenv("DB_PATH", "data/gitinspire.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("config: invalid PORT %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET is required")
	}
	if cfg.GitHubClientID == "" || cfg.GitHubClientSecret == "" {
		return nil, fmt.Errorf("config: GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required")
	}

	ownerStr := os.Getenv("OWNER_GITHUB_ID")
	if ownerStr == "" {
		return nil, fmt.Errorf("config: OWNER_GITHUB_ID is required")
	}
	owner, err := strconv.ParseInt(ownerStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("config: invalid OWNER_GITHUB_ID %q: %w", ownerStr, err)
	}
	cfg.OwnerID = owner

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
