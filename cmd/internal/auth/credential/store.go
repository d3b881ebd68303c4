package credential

import (
	"context"
	"log/slog"
	"strings"
)

// LocalPrincipalID is the well-known id of the single seeded principal.
const LocalPrincipalID int64 = 0

// Executor runs statements against the credential store.
//
// Implementations must report "no row" from QueryOne as found=false with a nil
// error; only genuine I/O or statement failures are errors.
type Executor interface {
	// Execute runs a mutating statement and returns the number of affected rows.
	Execute(ctx context.Context, stmt string, args ...any) (int64, error)

	// QueryOne runs a read returning at most one row and scans it into dest.
	QueryOne(ctx context.Context, stmt string, args []any, dest ...any) (found bool, err error)
}

// Store is an Executor with lifecycle and an explicit transaction scope.
type Store interface {
	Executor

	// InTx runs fn inside a single transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; fn must only use the Executor it is given.
	InTx(ctx context.Context, fn func(Executor) error) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Config selects and tunes a backend.
type Config struct {
	// DatabaseURL selects Postgres when non-empty.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// SQLitePath is used when DatabaseURL is empty.
	SQLitePath string
}

// Open builds a Store from cfg: Postgres when a database URL is configured,
// SQLite otherwise. The returned store is bootstrapped.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pool, err := NewPgxPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		st, err := NewPostgresStore(ctx, pool, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("credential.store.open", "backend", "postgres")
		return st, nil
	}

	path := strings.TrimSpace(cfg.SQLitePath)
	if path == "" {
		return nil, ErrConfig
	}
	st, err := OpenSQLite(ctx, path, log)
	if err != nil {
		return nil, err
	}
	log.Info("credential.store.open", "backend", "sqlite", "path", path)
	return st, nil
}
