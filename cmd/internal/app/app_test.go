package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	authapi "passage/cmd/internal/auth/api"
	"passage/cmd/internal/auth/credential"
	"passage/cmd/internal/auth/session"
)

func newTestApp(t *testing.T, metrics bool) (*App, credential.Store) {
	t.Helper()

	log := NewLoggerTo(io.Discard, "error", "json")
	st, err := credential.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "passage.sqlite"), log)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	authCfg := authapi.DefaultConfig()
	authCfg.CookieSecure = false

	a, err := NewWithStore(Config{MetricsEnabled: metrics}, log, st, session.DefaultConfig(), authCfg)
	if err != nil {
		t.Fatalf("NewWithStore: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a, st
}

func serve(a *App, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func TestApp_HealthAndReadiness(t *testing.T) {
	a, st := newTestApp(t, false)

	rr := serve(a, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("expected security headers")
	}

	rr = serve(a, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rr = serve(a, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz after close: %d", rr.Code)
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	a, _ := newTestApp(t, false)

	rr := serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", rr.Code)
	}
}

func TestApp_SetupFlowIsCounted(t *testing.T) {
	a, _ := newTestApp(t, true)

	form := url.Values{"apiKey": {"bfl-key"}}
	req := httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(a, req)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("setup: %d", rr.Code)
	}

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == authapi.DefaultCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected session cookie")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/bfl", nil)
	req.AddCookie(cookie)
	rr = serve(a, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"apiKey":"bfl-key"`) {
		t.Fatalf("api/bfl: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(a, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"passage_sessions_created_total 1",
		`passage_api_key_writes_total{result="stored"} 1`,
		`passage_session_validations_total{outcome="active"}`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestNewWithStore_RequiresStore(t *testing.T) {
	t.Parallel()

	log := NewLoggerTo(&bytes.Buffer{}, "error", "json")
	if _, err := NewWithStore(Config{}, log, nil, session.DefaultConfig(), authapi.DefaultConfig()); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
