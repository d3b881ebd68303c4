// Package session implements passage's cookie session model.
//
// A session is created for a principal from an opaque token (see
// cmd/security/token). Only the SHA-256 lookup id of the token is stored,
// together with the principal id and an absolute expiry in whole seconds.
//
// Validation is lazy and store-authoritative:
//   - no row: not authenticated.
//   - expired (now >= expires_at): the row is deleted, not authenticated.
//   - inside the renewal window (now >= expires_at - span/2): expiry slides to
//     now + span before the session is returned.
//   - otherwise the session is returned untouched.
//
// Every read-then-write sequence runs inside one credential store transaction
// and uses conditional statements, so concurrent validations of the same
// session cannot undo each other.
//
// Transport (cookies, HTTP) lives in cmd/internal/auth/api.
package session
