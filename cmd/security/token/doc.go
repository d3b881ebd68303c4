// Package token provides the session token primitives for passage.
//
// It is the single source of truth for how bearer tokens look and how they
// are turned into storage keys:
//   - Tokens are 20 random bytes rendered as lowercase, unpadded base-32.
//   - Lookup ids are the lowercase hex SHA-256 of the token bytes.
//
// Only lookup ids are ever persisted. The raw token lives in the client cookie
// and must never be logged or written to the store.
package token
