// Package config loads server configuration from the environment, with
// an optional .env file for development.
package config

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/dongruixiao/cyberbuddha/chains"
	"github.com/dongruixiao/cyberbuddha/facilitator"
)

// Config is everything the server binary needs to start.
type Config struct {
	// Port the HTTP server listens on.
	Port string

	// Address is the payment recipient.
	Address string

	// Network is the default payment network.
	Network string

	// ResourceURL is the canonical resource URL advertised in payment
	// requirements.
	ResourceURL string

	// FacilitatorURL is the x402 facilitator endpoint.
	FacilitatorURL string

	// FacilitatorAuth is an optional Authorization header value for the
	// facilitator, derived from CDP API credentials.
	FacilitatorAuth string

	// DatabaseDSN is the postgres connection string.
	DatabaseDSN string

	// LogLevel controls zap verbosity: debug, info, warn, error.
	LogLevel string
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:           envOr("PORT", "8080"),
		Address:        os.Getenv("ADDRESS"),
		Network:        envOr("NETWORK", string(chains.NetworkBaseSepolia)),
		ResourceURL:    envOr("RESOURCE_URL", "http://localhost:8080/api/wish"),
		FacilitatorURL: envOr("FACILITATOR_URL", facilitator.DefaultURL),
		DatabaseDSN:    databaseDSN(),
		LogLevel:       envOr("LOG_LEVEL", "info"),
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("ADDRESS must be set to the payment recipient")
	}
	if !chains.IsSupported(cfg.Network) {
		return nil, fmt.Errorf("unsupported NETWORK: %s", cfg.Network)
	}

	if keyID, secret := os.Getenv("CDP_API_KEY_ID"), os.Getenv("CDP_API_KEY_SECRET"); keyID != "" && secret != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(keyID + ":" + secret))
		cfg.FacilitatorAuth = "Basic " + credentials
	}

	return cfg, nil
}

func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		envOr("DATABASE_HOST", "localhost"),
		envOr("DATABASE_USER", "postgres"),
		os.Getenv("DATABASE_PASSWORD"),
		envOr("DATABASE_NAME", "cyberbuddha"),
		envOr("DATABASE_PORT", "5432"),
		envOr("DATABASE_SSLMODE", "disable"),
	)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
