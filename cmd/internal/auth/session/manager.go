package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"passage/cmd/internal/auth/credential"
	"passage/cmd/security/token"
)

// Manager creates, validates and invalidates sessions.
//
// Manager holds no per-session state; every decision is made against the
// credential store. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	store   credential.Store
	log     *slog.Logger
	metrics *Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics enables counters.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager returns a Manager bound to store.
func NewManager(cfg Config, store credential.Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, credential.ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:   cfg,
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config { return m.cfg }

// Store returns the credential store the manager operates on.
func (m *Manager) Store() credential.Store { return m.store }

// CreateOption tunes a single Create call.
type CreateOption func(*createOptions)

type createOptions struct {
	span time.Duration
}

// WithExpirationSpan overrides the configured span for one session.
func WithExpirationSpan(d time.Duration) CreateOption {
	return func(o *createOptions) { o.span = d }
}

// Create persists a session for principalID keyed by the lookup id of tok.
//
// The returned ExpiresAt is truncated to the second so it equals the stored row.
func (m *Manager) Create(ctx context.Context, now time.Time, tok string, principalID int64, opts ...CreateOption) (Session, error) {
	if tok == "" {
		return Session{}, ErrInvalidToken
	}

	o := createOptions{span: m.cfg.ExpirationSpan}
	for _, opt := range opts {
		opt(&o)
	}
	if o.span < minExpirationSpan {
		return Session{}, ErrConfig
	}

	s := Session{
		ID:          token.DeriveLookupID(tok),
		PrincipalID: principalID,
		ExpiresAt:   expiryAt(now.Add(o.span)),
	}

	err := m.store.InTx(ctx, func(ex credential.Executor) error {
		if m.cfg.SingleSession {
			dropped, err := ex.Execute(ctx, deletePrincipalSessionsStmt, principalID)
			if err != nil {
				return err
			}
			if dropped > 0 {
				m.log.Info("session.single.replaced", "principal_id", principalID, "dropped", dropped)
			}
		}
		_, err := ex.Execute(ctx, insertSessionStmt, s.ID, s.PrincipalID, s.ExpiresAt.Unix())
		return err
	})
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}

	m.metrics.observeCreated()
	m.log.Info("session.created",
		"session", token.ShortID(s.ID),
		"principal_id", principalID,
		"expires_at", s.ExpiresAt,
	)
	return s, nil
}

// Validate resolves tok to its session and principal, applying the expiry
// state machine in one transaction. An unknown, expired or empty token yields
// the zero Result and a nil error; errors are store failures only.
func (m *Manager) Validate(ctx context.Context, now time.Time, tok string) (Result, error) {
	var (
		res     Result
		outcome string
	)
	err := m.store.InTx(ctx, func(ex credential.Executor) error {
		var err error
		res, outcome, err = m.validate(ctx, ex, now, tok)
		return err
	})
	if err != nil {
		m.metrics.observeValidation(OutcomeError)
		return Result{}, fmt.Errorf("validate session: %w", err)
	}
	m.metrics.observeValidation(outcome)
	return res, nil
}

// ValidateWith applies the same policy as Validate on an executor owned by the
// caller, typically the one handed to a credential.Store InTx callback.
func (m *Manager) ValidateWith(ctx context.Context, ex credential.Executor, now time.Time, tok string) (Result, error) {
	res, outcome, err := m.validate(ctx, ex, now, tok)
	if err != nil {
		m.metrics.observeValidation(OutcomeError)
		return Result{}, fmt.Errorf("validate session: %w", err)
	}
	m.metrics.observeValidation(outcome)
	return res, nil
}

func (m *Manager) validate(ctx context.Context, ex credential.Executor, now time.Time, tok string) (Result, string, error) {
	if strings.TrimSpace(tok) == "" {
		return Result{}, OutcomeAbsent, nil
	}
	id := token.DeriveLookupID(tok)

	row, found, err := loadSession(ctx, ex, id)
	if err != nil {
		return Result{}, "", err
	}
	if !found {
		return Result{}, OutcomeAbsent, nil
	}

	renewed := false
	switch m.cfg.StateAt(now, row.ExpiresAt) {
	case StateExpired:
		if _, err := ex.Execute(ctx, deleteExpiredSessionStmt, id, row.ExpiresAt.Unix()); err != nil {
			return Result{}, "", err
		}
		m.log.Info("session.expired", "session", token.ShortID(id), "principal_id", row.PrincipalID)
		return Result{}, OutcomeExpired, nil

	case StateRenewing:
		next := expiryAt(now.Add(m.cfg.ExpirationSpan))
		n, err := ex.Execute(ctx, renewSessionStmt, next.Unix(), id, row.ExpiresAt.Unix())
		if err != nil {
			return Result{}, "", err
		}
		if n == 0 {
			// Another writer renewed or removed the row first; report what it left.
			row, found, err = loadSession(ctx, ex, id)
			if err != nil {
				return Result{}, "", err
			}
			if !found || !now.Before(row.ExpiresAt) {
				return Result{}, OutcomeAbsent, nil
			}
			break
		}
		row.ExpiresAt = next
		renewed = true
		m.log.Debug("session.renewed", "session", token.ShortID(id), "expires_at", next)
	}

	outcome := OutcomeActive
	if renewed {
		outcome = OutcomeRenewed
	}
	return Result{
		Session:   &row,
		Principal: &Principal{ID: row.PrincipalID},
		Renewed:   renewed,
	}, outcome, nil
}

func loadSession(ctx context.Context, ex credential.Executor, id string) (Session, bool, error) {
	var (
		row       Session
		expiresAt int64
	)
	found, err := ex.QueryOne(ctx, selectSessionStmt, []any{id}, &row.ID, &row.PrincipalID, &expiresAt)
	if err != nil || !found {
		return Session{}, found, err
	}
	row.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return row, true, nil
}

// Invalidate deletes the session with lookupID. Deleting an absent session is
// not an error.
func (m *Manager) Invalidate(ctx context.Context, lookupID string) error {
	n, err := m.store.Execute(ctx, deleteSessionStmt, lookupID)
	if err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	if n > 0 {
		m.log.Info("session.invalidated", "session", token.ShortID(lookupID))
	}
	return nil
}

// InvalidateToken deletes the session identified by a raw token.
func (m *Manager) InvalidateToken(ctx context.Context, tok string) error {
	return m.Invalidate(ctx, token.DeriveLookupID(tok))
}

// InvalidateAll deletes every session of principalID and returns how many
// were removed.
func (m *Manager) InvalidateAll(ctx context.Context, principalID int64) (int64, error) {
	n, err := m.store.Execute(ctx, deletePrincipalSessionsStmt, principalID)
	if err != nil {
		return 0, fmt.Errorf("invalidate principal sessions: %w", err)
	}
	m.log.Info("session.invalidated_all", "principal_id", principalID, "count", n)
	return n, nil
}

// DeleteExpired removes every session already expired at now. Validate expires
// sessions lazily; this is the bulk counterpart for maintenance runs.
func (m *Manager) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.store.Execute(ctx, deleteAllExpiredStmt, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	m.log.Info("session.sweep", "deleted", n)
	return n, nil
}
