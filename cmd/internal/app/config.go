package app

import (
	"time"

	"passage/cmd/internal/auth/credential"
)

// DefaultSQLitePath is where the local credential store lives when no
// Postgres URL is configured.
const DefaultSQLitePath = "/tmp/passage.sqlite"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects the Postgres credential store; SQLitePath is used
	// otherwise.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	SQLitePath  string

	MetricsEnabled bool

	// Security policy:
	// If true, the session cookie MUST carry the Secure attribute.
	RequireSecureCookie bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PASSAGE_HTTP_ADDR", "127.0.0.1:8080"),
		LogLevel:  EnvString("PASSAGE_LOG_LEVEL", "info"),
		LogFormat: EnvString("PASSAGE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PASSAGE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PASSAGE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PASSAGE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PASSAGE_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("PASSAGE_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("PASSAGE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("PASSAGE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("PASSAGE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("PASSAGE_DB_MIN_CONNS", 0),
		SQLitePath:  EnvString("PASSAGE_SQLITE_PATH", DefaultSQLitePath),

		MetricsEnabled: EnvBool("PASSAGE_METRICS_ENABLED", true),

		RequireSecureCookie: EnvBool("PASSAGE_REQUIRE_SECURE_COOKIE", false),
	}
}

// CredentialConfig returns the store selection derived from c.
func (c Config) CredentialConfig() credential.Config {
	return credential.Config{
		DatabaseURL: c.DatabaseURL,
		DBMaxConns:  c.DBMaxConns,
		DBMinConns:  c.DBMinConns,
		SQLitePath:  c.SQLitePath,
	}
}
