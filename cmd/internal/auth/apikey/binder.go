package apikey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"passage/cmd/internal/auth/credential"
	"passage/cmd/internal/auth/session"
)

const (
	deletePrincipalKeysStmt = `DELETE FROM api_key WHERE principal_id = ?`

	insertKeyStmt = `INSERT INTO api_key (key, principal_id, updated_at) VALUES (?, ?, ?)`

	selectPrincipalKeyStmt = `
		SELECT key FROM api_key
		WHERE principal_id = ?
		ORDER BY updated_at DESC
		LIMIT 1`
)

// FetchResult is the outcome of Fetch. APIKey is nil when the session is not
// valid.
type FetchResult struct {
	APIKey *string
}

// Binder stores and fetches the API key of a session's principal.
type Binder struct {
	store    credential.Store
	sessions *session.Manager
	log      *slog.Logger
	metrics  *Metrics
}

// NewBinder returns a Binder that validates sessions through sessions and
// persists keys in the same store. log and metrics may be nil.
func NewBinder(sessions *session.Manager, log *slog.Logger, metrics *Metrics) (*Binder, error) {
	if sessions == nil || sessions.Store() == nil {
		return nil, credential.ErrNilStore
	}
	if log == nil {
		log = slog.Default()
	}
	return &Binder{
		store:    sessions.Store(),
		sessions: sessions,
		log:      log,
		metrics:  metrics,
	}, nil
}

// Store replaces the principal's key with key when tok resolves to a valid
// session. It reports false without touching the store when the session is
// not valid; errors are store failures.
func (b *Binder) Store(ctx context.Context, now time.Time, tok, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, ErrInvalidKey
	}

	var (
		principalID int64
		authn       bool
	)
	err := b.store.InTx(ctx, func(ex credential.Executor) error {
		res, err := b.sessions.ValidateWith(ctx, ex, now, tok)
		if err != nil || !res.Authenticated() {
			return err
		}
		authn = true
		principalID = res.Principal.ID

		if _, err := ex.Execute(ctx, deletePrincipalKeysStmt, principalID); err != nil {
			return err
		}
		_, err = ex.Execute(ctx, insertKeyStmt, key, principalID, now.Unix())
		return err
	})

	if err != nil {
		b.metrics.observeWrite(ResultError)
		return false, fmt.Errorf("store api key: %w", err)
	}
	if !authn {
		b.metrics.observeWrite(ResultUnauthenticated)
		b.log.Warn("apikey.store.unauthenticated")
		return false, nil
	}

	b.metrics.observeWrite(ResultStored)
	b.log.Info("apikey.stored", "principal_id", principalID)
	return true, nil
}

// Fetch returns the key bound to the principal behind tok. An invalid session
// yields the zero FetchResult; a valid session without a key yields
// ErrKeyNotProvisioned.
func (b *Binder) Fetch(ctx context.Context, now time.Time, tok string) (FetchResult, error) {
	var (
		key   string
		found bool
		authn bool
	)
	err := b.store.InTx(ctx, func(ex credential.Executor) error {
		res, err := b.sessions.ValidateWith(ctx, ex, now, tok)
		if err != nil || !res.Authenticated() {
			return err
		}
		authn = true
		key, found, err = queryKey(ctx, ex, res.Principal.ID)
		return err
	})
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch api key: %w", err)
	}
	if !authn {
		return FetchResult{}, nil
	}
	if !found {
		return FetchResult{}, ErrKeyNotProvisioned
	}
	return FetchResult{APIKey: &key}, nil
}

// FetchForPrincipal returns the key bound to principalID without session
// validation. Callers must have authenticated the principal already.
func (b *Binder) FetchForPrincipal(ctx context.Context, principalID int64) (string, error) {
	key, found, err := queryKey(ctx, b.store, principalID)
	if err != nil {
		return "", fmt.Errorf("fetch api key: %w", err)
	}
	if !found {
		return "", ErrKeyNotProvisioned
	}
	return key, nil
}

func queryKey(ctx context.Context, ex credential.Executor, principalID int64) (string, bool, error) {
	var key string
	found, err := ex.QueryOne(ctx, selectPrincipalKeyStmt, []any{principalID}, &key)
	if err != nil || !found {
		return "", false, err
	}
	return key, true, nil
}
