package session

import "errors"

var (
	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrInvalidToken is returned when Create is called without a token.
	ErrInvalidToken = errors.New("invalid token")
)
