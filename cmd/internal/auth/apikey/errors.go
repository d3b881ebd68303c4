package apikey

import "errors"

var (
	// ErrKeyNotProvisioned is returned by Fetch when the session is valid but
	// no key has been stored for its principal.
	ErrKeyNotProvisioned = errors.New("api key not provisioned")

	// ErrInvalidKey is returned for empty or whitespace-only keys.
	ErrInvalidKey = errors.New("invalid api key")
)
