// Package config loads process configuration from the environment. It is
// the single ownership point for the token signing secret: the secret is
// read once at startup and handed to the token codec, never exposed as
// ambient global state.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	envAddr       = "DEVFOLIO_ADDR"
	envPGDSN      = "DEVFOLIO_PG_DSN"
	envAuthSecret = "DEVFOLIO_AUTH_SECRET"
	envIssuer     = "DEVFOLIO_AUTH_ISSUER"
	envAccessTTL  = "DEVFOLIO_ACCESS_TTL"
	envRefreshTTL = "DEVFOLIO_REFRESH_TTL"
)

const (
	defaultAddr       = ":8080"
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Config is the full process configuration.
type Config struct {
	Addr        string
	PostgresDSN string
	AuthSecret  string
	Issuer      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// Load reads configuration from the environment, after loading an
// optional .env file for local development. Missing .env is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (Config, error) {
	cfg := Config{
		Addr:        getenv(envAddr, defaultAddr),
		PostgresDSN: strings.TrimSpace(os.Getenv(envPGDSN)),
		AuthSecret:  strings.TrimSpace(os.Getenv(envAuthSecret)),
		Issuer:      strings.TrimSpace(os.Getenv(envIssuer)),
		AccessTTL:   defaultAccessTTL,
		RefreshTTL:  defaultRefreshTTL,
	}
	if cfg.AuthSecret == "" {
		return Config{}, errors.New("config: " + envAuthSecret + " is required")
	}
	if v := strings.TrimSpace(os.Getenv(envAccessTTL)); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("config: invalid %s: %q", envAccessTTL, v)
		}
		cfg.AccessTTL = ttl
	}
	if v := strings.TrimSpace(os.Getenv(envRefreshTTL)); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("config: invalid %s: %q", envRefreshTTL, v)
		}
		cfg.RefreshTTL = ttl
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
