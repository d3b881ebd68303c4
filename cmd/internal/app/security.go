package app

import (
	"errors"

	authapi "passage/cmd/internal/auth/api"
	"passage/cmd/internal/auth/session"
)

// ValidateSecurityConfig enforces passage's security policy at startup.
func ValidateSecurityConfig(cfg Config, authCfg authapi.Config, sessCfg session.Config) error {
	if cfg.RequireSecureCookie && !authCfg.CookieSecure {
		return errors.New("security policy: PASSAGE_REQUIRE_SECURE_COOKIE=true but PASSAGE_AUTH_COOKIE_SECURE=false")
	}
	if err := sessCfg.Validate(); err != nil {
		return errors.New("security policy: PASSAGE_SESSION_EXPIRATION_SPAN must be at least 2s")
	}
	return nil
}
