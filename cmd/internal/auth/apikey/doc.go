// Package apikey binds one upstream API key to the principal behind a session.
//
// Writes replace: storing a key deletes every key previously bound to the
// principal and inserts the new one, inside the same transaction that
// validates the session. Reads go through the same session validation, so an
// invalid session can neither read nor write a key.
package apikey
