// Package config loads runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/aidekit/aide/internal/mailer"
)

// Config is the resolved runtime configuration.
type Config struct {
	// DataDir is the root under which aide keeps its state directory.
	DataDir string

	// ListenAddr is the HTTP API bind address.
	ListenAddr string

	// KeywordsFile optionally overrides the built-in event
	// classification keywords.
	KeywordsFile string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	SMTP  mailer.SMTPConfig
	Gmail mailer.GmailConfig
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over .env entries.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DataDir:      envOr("AIDE_DATA_DIR", "."),
		ListenAddr:   envOr("AIDE_LISTEN_ADDR", ":8080"),
		KeywordsFile: os.Getenv("AIDE_KEYWORDS_FILE"),
		LogLevel:     envOr("AIDE_LOG_LEVEL", "info"),
		SMTP: mailer.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envOr("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		Gmail: mailer.GmailConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			TokenFile:    envOr("GOOGLE_TOKEN_FILE", "token.json"),
		},
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
