package token

import "errors"

// Public, stable errors for callers.
var (
	// ErrEntropy is returned when the system random source fails.
	ErrEntropy = errors.New("token entropy source failed")
)
