package session

import (
	"context"
	"os"
	"testing"
	"time"

	"passage/cmd/internal/auth/credential"
	"passage/cmd/security/token"
)

// Integration tests are enabled when PASSAGE_DATABASE_URL is set.

func TestManager_Integration_PostgresLifecycle(t *testing.T) {
	dbURL := os.Getenv("PASSAGE_DATABASE_URL")
	if dbURL == "" {
		t.Skip("PASSAGE_DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := credential.Open(ctx, credential.Config{DatabaseURL: dbURL, DBMaxConns: 4}, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()

	m, err := NewManager(DefaultConfig(), st, WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok := token.MustGenerate()
	now := time.Now().UTC().Truncate(time.Second)

	created, err := m.Create(ctx, now, tok, credential.LocalPrincipalID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = m.Invalidate(context.Background(), created.ID) })

	res, err := m.Validate(ctx, now, tok)
	if err != nil || !res.Authenticated() || res.Renewed {
		t.Fatalf("Validate fresh: res=%+v err=%v", res, err)
	}

	later := now.Add(20 * 24 * time.Hour)
	res, err = m.Validate(ctx, later, tok)
	if err != nil || !res.Renewed {
		t.Fatalf("Validate renew: res=%+v err=%v", res, err)
	}
	if !res.Session.ExpiresAt.Equal(later.Add(DefaultExpirationSpan)) {
		t.Fatalf("renewed expiry mismatch: %v", res.Session.ExpiresAt)
	}

	res, err = m.Validate(ctx, later.Add(DefaultExpirationSpan), tok)
	if err != nil || res.Authenticated() {
		t.Fatalf("Validate expired: res=%+v err=%v", res, err)
	}

	if err := m.Invalidate(ctx, created.ID); err != nil {
		t.Fatalf("Invalidate (idempotent): %v", err)
	}
}
