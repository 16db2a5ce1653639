// Package config holds all environment-based configuration for the Secrets
// app. Everything is read exactly once at startup and passed to component
// constructors; nothing reads the environment mid-request.
package config

import (
	"encoding/hex"
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/secretsapp/secrets"
)

// Config is parsed from the environment (with an optional .env file).
type Config struct {
	ListenAddr string `env:"SECRETS_LISTEN_ADDR" envDefault:":3000"`
	BaseURL    string `env:"SECRETS_BASE_URL" envDefault:"http://localhost:3000"`

	// Environment controls strictness of validation ("development" or
	// "production").
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// DatabaseURL selects the gorm-backed store. Empty means the
	// file-backed store rooted at StoragePath.
	DatabaseURL string `env:"DATABASE_URL"`
	StoragePath string `env:"SECRETS_STORAGE_PATH" envDefault:"./data"`

	// AuthStrategy selects the credential verification strategy:
	// "plaintext", "aesgcm" or "bcrypt". One strategy per deployment,
	// chosen once; bcrypt is the recommended default.
	AuthStrategy string `env:"AUTH_STRATEGY" envDefault:"bcrypt"`

	// SecretKey is the hex-encoded AES key for the aesgcm strategy
	// (32, 48 or 64 hex chars). Process configuration only; never
	// persisted alongside the data it protects.
	SecretKey string `env:"SECRET_KEY"`

	// BcryptCost tunes the bcrypt work factor. 0 means the library
	// default.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"0"`

	JWTSecretKey          string `env:"JWT_SECRET_KEY"`
	SessionTimeoutSeconds int    `env:"SESSION_TIMEOUT_SECONDS" envDefault:"86400"`

	// TemplatesDir overrides the embedded view templates when set.
	TemplatesDir string `env:"SECRETS_TEMPLATES_DIR"`

	// Per-provider OAuth client credentials. A provider is enabled when
	// both its id and secret are set. Callback URLs default to
	// BaseURL + /auth/<provider>/secrets.
	GoogleClientID       string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GithubClientID       string `env:"OAUTH2_GITHUB_CLIENT_ID"`
	GithubClientSecret   string `env:"OAUTH2_GITHUB_CLIENT_SECRET"`
	FacebookClientID     string `env:"OAUTH2_FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `env:"OAUTH2_FACEBOOK_CLIENT_SECRET"`
	TwitterClientID      string `env:"OAUTH2_TWITTER_CLIENT_ID"`
	TwitterClientSecret  string `env:"OAUTH2_TWITTER_CLIENT_SECRET"`
}

// Load reads configuration from environment variables, after attempting to
// load a .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch secrets.Strategy(c.AuthStrategy) {
	case secrets.StrategyPlaintext:
		log.Printf("WARNING: AUTH_STRATEGY=plaintext stores passwords unprotected; use bcrypt")
	case secrets.StrategyAESGCM:
		key, err := c.SealKey()
		if err != nil {
			return err
		}
		if len(key) == 0 {
			return fmt.Errorf("SECRET_KEY is required when AUTH_STRATEGY=aesgcm")
		}
	case secrets.StrategyBcrypt:
	default:
		return fmt.Errorf("unknown AUTH_STRATEGY %q (want plaintext, aesgcm or bcrypt)", c.AuthStrategy)
	}

	if c.JWTSecretKey == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET_KEY is required in production")
		}
		c.JWTSecretKey = "dev-only-jwt-secret"
	}
	return nil
}

// SealKey decodes the hex AES key for the aesgcm strategy.
func (c *Config) SealKey() ([]byte, error) {
	if c.SecretKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("SECRET_KEY must be hex: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	default:
		return nil, fmt.Errorf("SECRET_KEY must decode to 16, 24 or 32 bytes, got %d", len(key))
	}
}

// SessionTimeout returns the configured session lifetime.
func (c *Config) SessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// CallbackURL derives the OAuth callback for a provider.
func (c *Config) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/auth/%s/secrets", c.BaseURL, provider)
}
