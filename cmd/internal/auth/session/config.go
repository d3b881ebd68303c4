package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultExpirationSpan is the lifetime granted to new and renewed sessions.
const DefaultExpirationSpan = 30 * 24 * time.Hour

// minExpirationSpan keeps the renewal half-life at one stored second or more.
const minExpirationSpan = 2 * time.Second

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// ExpirationSpan is the lifetime of a session from creation or renewal.
	// Sessions are renewed once less than half of it remains.
	ExpirationSpan time.Duration

	// SingleSession drops every other session of a principal when a new one
	// is created. Multiple concurrent sessions are allowed by default.
	SingleSession bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ExpirationSpan: DefaultExpirationSpan,
	}
}

// HalfLife is the renewal threshold: a session whose remaining lifetime is at
// most HalfLife is extended on its next validation.
func (c Config) HalfLife() time.Duration {
	return c.ExpirationSpan / 2
}

// Validate reports ErrConfig when c cannot drive the expiry state machine.
func (c Config) Validate() error {
	if c.ExpirationSpan < minExpirationSpan {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - PASSAGE_SESSION_EXPIRATION_SPAN (Go duration, >= 2s)
//   - PASSAGE_SESSION_SINGLE (bool)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("PASSAGE_SESSION_EXPIRATION_SPAN")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.ExpirationSpan = d
	}

	if v := strings.TrimSpace(os.Getenv("PASSAGE_SESSION_SINGLE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.SingleSession = b
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
