package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on an embedded SQLite database.
//
// The pool is limited to one connection: SQLite serializes writers anyway and
// a single connection keeps transactions from tripping over SQLITE_BUSY.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and bootstraps the schema.
func OpenSQLite(ctx context.Context, path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" || strings.ContainsAny(path, "?#") {
		return nil, fmt.Errorf("%w: sqlite path %q must be non-empty and contain no '?' or '#'", ErrConfig, path)
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, storeErr("credential.sqlite.open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr("credential.sqlite.ping", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := bootstrap(ctx, s, dialectSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return fmt.Sprintf("file:%s?%s", path, q.Encode())
}

func (s *SQLiteStore) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	return sqlExecute(ctx, s.db, s.log, stmt, args...)
}

func (s *SQLiteStore) QueryOne(ctx context.Context, stmt string, args []any, dest ...any) (bool, error) {
	return sqlQueryOne(ctx, s.db, stmt, args, dest...)
}

// InTx runs fn in a single SQLite transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("credential.begin", err)
	}

	if err := fn(sqlTxExecutor{tx: tx, log: s.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn("credential.rollback.fail", "err", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("credential.commit", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return storeErr("credential.ping", s.db.PingContext(ctx))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlTxExecutor struct {
	tx  *sql.Tx
	log *slog.Logger
}

func (e sqlTxExecutor) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	return sqlExecute(ctx, e.tx, e.log, stmt, args...)
}

func (e sqlTxExecutor) QueryOne(ctx context.Context, stmt string, args []any, dest ...any) (bool, error) {
	return sqlQueryOne(ctx, e.tx, stmt, args, dest...)
}

func sqlExecute(ctx context.Context, q sqlQuerier, log *slog.Logger, stmt string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, storeErr("credential.execute", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("credential.rows_affected", err)
	}
	log.Debug("credential.execute", "rows_affected", n)
	return n, nil
}

func sqlQueryOne(ctx context.Context, q sqlQuerier, stmt string, args []any, dest ...any) (bool, error) {
	err := q.QueryRowContext(ctx, stmt, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("credential.query_one", err)
	}
	return true, nil
}
