package credential

import (
	"context"
	"errors"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the statement surface shared by pools and transactions.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the subset of *pgxpool.Pool used by PostgresStore.
// pgxmock.PgxPoolIface satisfies it as well.
type PgxPool interface {
	pgxQuerier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool PgxPool
	log  *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps pool and bootstraps the schema.
// The store takes ownership of the pool; Close closes it.
func NewPostgresStore(ctx context.Context, pool PgxPool, log *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrNilStore
	}
	if log == nil {
		log = slog.Default()
	}
	s := &PostgresStore{pool: pool, log: log}
	if err := bootstrap(ctx, s, dialectPostgres); err != nil {
		return nil, err
	}
	return s, nil
}

// poolConfig parses the DSN; explicit pool sizes override the DSN only when set.
func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, storeErr("credential.pool.config", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 {
		pcfg.MinConns = cfg.DBMinConns
	}
	return pcfg, nil
}

// NewPgxPool builds a pgxpool from cfg and validates connectivity.
func NewPgxPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, storeErr("credential.pool.open", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, storeErr("credential.pool.ping", err)
	}
	return pool, nil
}

func (s *PostgresStore) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	return pgExecute(ctx, s.pool, s.log, stmt, args...)
}

func (s *PostgresStore) QueryOne(ctx context.Context, stmt string, args []any, dest ...any) (bool, error) {
	return pgQueryOne(ctx, s.pool, stmt, args, dest...)
}

// InTx runs fn in a single Postgres transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Executor) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("credential.begin", err)
	}

	if err := fn(pgTxExecutor{tx: tx, log: s.log}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn("credential.rollback.fail", "err", rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("credential.commit", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return storeErr("credential.ping", s.pool.Ping(ctx))
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgTxExecutor struct {
	tx  pgx.Tx
	log *slog.Logger
}

func (e pgTxExecutor) Execute(ctx context.Context, stmt string, args ...any) (int64, error) {
	return pgExecute(ctx, e.tx, e.log, stmt, args...)
}

func (e pgTxExecutor) QueryOne(ctx context.Context, stmt string, args []any, dest ...any) (bool, error) {
	return pgQueryOne(ctx, e.tx, stmt, args, dest...)
}

func pgExecute(ctx context.Context, q pgxQuerier, log *slog.Logger, stmt string, args ...any) (int64, error) {
	sqlText, err := rebindDollar(stmt)
	if err != nil {
		return 0, storeErr("credential.execute", err)
	}
	tag, err := q.Exec(ctx, sqlText, args...)
	if err != nil {
		return 0, storeErr("credential.execute", err)
	}
	n := tag.RowsAffected()
	log.Debug("credential.execute", "rows_affected", n)
	return n, nil
}

func pgQueryOne(ctx context.Context, q pgxQuerier, stmt string, args []any, dest ...any) (bool, error) {
	sqlText, err := rebindDollar(stmt)
	if err != nil {
		return false, storeErr("credential.query_one", err)
	}
	err = q.QueryRow(ctx, sqlText, args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("credential.query_one", err)
	}
	return true, nil
}

func rebindDollar(stmt string) (string, error) {
	return sq.Dollar.ReplacePlaceholders(stmt)
}
