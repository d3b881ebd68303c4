package authapi

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// ErrConfig is returned for invalid auth API configuration.
var ErrConfig = errors.New("invalid auth api config")

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "passage_session"

// Config controls auth API behavior and cookie attributes.
type Config struct {
	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	TrustProxy   bool
	MaxBodyBytes int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CookieName:     DefaultCookieName,
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
		MaxBodyBytes:   1 << 20, // 1 MiB
	}
}

// LoadConfigFromEnv loads auth API config from environment variables with safe defaults.
//
// Optional:
//   - PASSAGE_AUTH_COOKIE_NAME
//   - PASSAGE_AUTH_COOKIE_DOMAIN
//   - PASSAGE_AUTH_COOKIE_SECURE (bool)
//   - PASSAGE_AUTH_COOKIE_SAMESITE (strict|lax|none|default)
//   - PASSAGE_AUTH_TRUST_PROXY (bool)
//   - PASSAGE_AUTH_MAX_BODY_BYTES
//
// Returns ErrConfig for a cookie name that is not a valid HTTP token.
func LoadConfigFromEnv() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		CookieName:     envString("PASSAGE_AUTH_COOKIE_NAME", def.CookieName),
		CookiePath:     def.CookiePath,
		CookieDomain:   envString("PASSAGE_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("PASSAGE_AUTH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite: parseSameSite(envString("PASSAGE_AUTH_COOKIE_SAMESITE", "lax")),
		TrustProxy:     envBool("PASSAGE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("PASSAGE_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}

	if !validCookieName(cfg.CookieName) {
		return Config{}, ErrConfig
	}
	return cfg, nil
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
