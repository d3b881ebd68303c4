// Package main provides a CI-friendly smoke test for the passage cookie flow.
//
// It validates, against a running server:
//   - unauthenticated /prompt redirects to /setup
//   - POST /setup issues an HttpOnly session cookie and redirects to /prompt
//   - /prompt and /me resolve the session
//   - /api/bfl returns the stored key
//   - logout clears the cookie and /api/bfl answers 403 afterwards
//
// Over plain http the server must run with PASSAGE_AUTH_COOKIE_SECURE=false,
// otherwise the cookie jar will not send the Secure session cookie back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

type smokeClient struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL    = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		apiKey     = flag.String("key", fmt.Sprintf("smoke-%d", time.Now().UnixNano()), "API key to store")
		cookieName = flag.String("cookie", "passage_session", "Session cookie name")
		timeout    = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose    = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookie jar: %v", err)
	}
	c := &smokeClient{
		base: base,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: *timeout,
		verbose: *verbose,
	}
	root := context.Background()

	c.mustRedirect(root, http.MethodGet, "/prompt", nil, http.StatusFound, "/setup")

	form := url.Values{"apiKey": {*apiKey}}
	resp := c.mustRedirect(root, http.MethodPost, "/setup", strings.NewReader(form.Encode()), http.StatusSeeOther, "/prompt")
	cookie := findCookie(resp, *cookieName)
	if cookie == nil {
		fatalf("setup: missing %s cookie", *cookieName)
	}
	if !cookie.HttpOnly {
		fatalf("setup: session cookie must be HttpOnly")
	}

	c.mustStatus(root, http.MethodGet, "/prompt", http.StatusOK)

	var me struct {
		PrincipalID      int64     `json:"principal_id"`
		SessionExpiresAt time.Time `json:"session_expires_at"`
	}
	c.mustJSON(root, http.MethodGet, "/me", http.StatusOK, &me)

	var key struct {
		APIKey string `json:"apiKey"`
	}
	c.mustJSON(root, http.MethodPost, "/api/bfl", http.StatusOK, &key)
	if key.APIKey != *apiKey {
		fatalf("api/bfl: key mismatch: got %q", key.APIKey)
	}

	c.mustStatus(root, http.MethodPost, "/auth/logout", http.StatusNoContent)
	c.mustStatus(root, http.MethodPost, "/api/bfl", http.StatusForbidden)

	fmt.Printf("OK: principal_id=%d session_expires_at=%s\n", me.PrincipalID, me.SessionExpiresAt.Format(time.RFC3339))
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func (c *smokeClient) do(parent context.Context, method, path string, body io.Reader) *http.Response {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s %s: %v", method, path, err)
	}
	// Buffer the body so it survives the step's context.
	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		fatalf("%s %s: read body: %v", method, path, err)
	}
	resp.Body = io.NopCloser(strings.NewReader(string(data)))

	if c.verbose {
		fmt.Printf("%s %s -> %d\n", method, path, resp.StatusCode)
	}
	return resp
}

func (c *smokeClient) mustStatus(parent context.Context, method, path string, want int) *http.Response {
	resp := c.do(parent, method, path, nil)
	if resp.StatusCode != want {
		fatalf("%s %s: status=%d want=%d", method, path, resp.StatusCode, want)
	}
	return resp
}

func (c *smokeClient) mustRedirect(parent context.Context, method, path string, body io.Reader, wantStatus int, wantLocation string) *http.Response {
	resp := c.do(parent, method, path, body)
	if resp.StatusCode != wantStatus {
		fatalf("%s %s: status=%d want=%d", method, path, resp.StatusCode, wantStatus)
	}
	if loc := resp.Header.Get("Location"); loc != wantLocation {
		fatalf("%s %s: location=%q want=%q", method, path, loc, wantLocation)
	}
	return resp
}

func (c *smokeClient) mustJSON(parent context.Context, method, path string, want int, dst any) {
	resp := c.mustStatus(parent, method, path, want)
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		fatalf("%s %s: decode: %v", method, path, err)
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
