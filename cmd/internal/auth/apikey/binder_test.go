package apikey

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/cmd/internal/auth/credential"
	"passage/cmd/internal/auth/session"
	"passage/cmd/security/token"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    credential.Store
	sessions *session.Manager
	binder   *Binder
	metrics  *Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := credential.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "passage.sqlite"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessions, err := session.NewManager(session.DefaultConfig(), st, session.WithLogger(log))
	require.NoError(t, err)

	metrics := NewMetrics(prometheus.NewRegistry())
	b, err := NewBinder(sessions, log, metrics)
	require.NoError(t, err)

	return fixture{store: st, sessions: sessions, binder: b, metrics: metrics}
}

func (f fixture) login(t *testing.T) string {
	t.Helper()
	tok := token.MustGenerate()
	_, err := f.sessions.Create(context.Background(), testNow, tok, credential.LocalPrincipalID)
	require.NoError(t, err)
	return tok
}

func (f fixture) keys(t *testing.T) []string {
	t.Helper()
	var n int64
	_, err := f.store.QueryOne(context.Background(), `SELECT COUNT(*) FROM api_key`, nil, &n)
	require.NoError(t, err)
	require.LessOrEqual(t, n, int64(1), "a principal holds at most one key")
	if n == 0 {
		return nil
	}
	key, err := f.binder.FetchForPrincipal(context.Background(), credential.LocalPrincipalID)
	require.NoError(t, err)
	return []string{key}
}

func TestNewBinder_RequiresSessions(t *testing.T) {
	t.Parallel()
	_, err := NewBinder(nil, nil, nil)
	assert.ErrorIs(t, err, credential.ErrNilStore)
}

func TestStore_ReplacesPreviousKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	ok, err := f.binder.Store(ctx, testNow, tok, "first")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.binder.Store(ctx, testNow.Add(time.Minute), tok, "second")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []string{"second"}, f.keys(t))

	res, err := f.binder.Fetch(ctx, testNow, tok)
	require.NoError(t, err)
	require.NotNil(t, res.APIKey)
	assert.Equal(t, "second", *res.APIKey)
}

func TestStore_SameKeyTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	for i := 0; i < 2; i++ {
		ok, err := f.binder.Store(ctx, testNow, tok, "same")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, []string{"same"}, f.keys(t))
}

func TestStore_UnauthenticatedDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	ok, err := f.binder.Store(ctx, testNow, tok, "kept")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.binder.Store(ctx, testNow, token.MustGenerate(), "intruder")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.binder.Store(ctx, testNow, "", "intruder")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{"kept"}, f.keys(t))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.writes.WithLabelValues(ResultUnauthenticated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.writes.WithLabelValues(ResultStored)))
}

func TestStore_ExpiredSessionIsRejectedAndRemoved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	afterExpiry := testNow.Add(session.DefaultExpirationSpan)
	ok, err := f.binder.Store(ctx, afterExpiry, tok, "late")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, f.keys(t))

	var n int64
	_, err = f.store.QueryOne(ctx, `SELECT COUNT(*) FROM session`, nil, &n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_RejectsBlankKey(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	for _, key := range []string{"", "   ", "\t\n"} {
		ok, err := f.binder.Store(context.Background(), testNow, tok, key)
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.False(t, ok)
	}
	assert.Empty(t, f.keys(t))
}

func TestStore_StoreFailureIsReported(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)
	require.NoError(t, f.store.Close())

	ok, err := f.binder.Store(context.Background(), testNow, tok, "k")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, credential.IsStoreError(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.writes.WithLabelValues(ResultError)))
}

func TestFetch_InvalidSessionReturnsNull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	ok, err := f.binder.Store(ctx, testNow, tok, "secret")
	require.NoError(t, err)
	require.True(t, ok)

	for _, bad := range []string{"", token.MustGenerate()} {
		res, err := f.binder.Fetch(ctx, testNow, bad)
		require.NoError(t, err)
		assert.Nil(t, res.APIKey)
	}
}

func TestFetch_NotProvisioned(t *testing.T) {
	f := newFixture(t)
	tok := f.login(t)

	res, err := f.binder.Fetch(context.Background(), testNow, tok)
	assert.True(t, errors.Is(err, ErrKeyNotProvisioned))
	assert.Nil(t, res.APIKey)

	_, err = f.binder.FetchForPrincipal(context.Background(), credential.LocalPrincipalID)
	assert.ErrorIs(t, err, ErrKeyNotProvisioned)
}

func TestFetch_RenewsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tok := f.login(t)

	ok, err := f.binder.Store(ctx, testNow, tok, "secret")
	require.NoError(t, err)
	require.True(t, ok)

	later := testNow.Add(20 * 24 * time.Hour)
	res, err := f.binder.Fetch(ctx, later, tok)
	require.NoError(t, err)
	require.NotNil(t, res.APIKey)

	v, err := f.sessions.Validate(ctx, later, tok)
	require.NoError(t, err)
	require.True(t, v.Authenticated())
	assert.False(t, v.Renewed, "fetch already renewed the session")
	assert.Equal(t, later.Add(session.DefaultExpirationSpan), v.Session.ExpiresAt)
}

func TestBinder_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok := token.MustGenerate()
	created, err := f.sessions.Create(ctx, testNow, tok, credential.LocalPrincipalID)
	require.NoError(t, err)

	ok, err := f.binder.Store(ctx, testNow, tok, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	res, err := f.binder.Fetch(ctx, testNow, tok)
	require.NoError(t, err)
	require.NotNil(t, res.APIKey)
	assert.Equal(t, "k1", *res.APIKey)

	require.NoError(t, f.sessions.Invalidate(ctx, created.ID))

	res, err = f.binder.Fetch(ctx, testNow, tok)
	require.NoError(t, err)
	assert.Nil(t, res.APIKey)

	// The key outlives the session and is visible again after a new login.
	tok2 := f.login(t)
	res, err = f.binder.Fetch(ctx, testNow, tok2)
	require.NoError(t, err)
	require.NotNil(t, res.APIKey)
	assert.Equal(t, "k1", *res.APIKey)
}
