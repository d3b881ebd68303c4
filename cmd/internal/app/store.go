package app

import (
	"context"
	"time"

	"passage/cmd/internal/auth/credential"
)

// PingStore checks the credential store within timeout.
func PingStore(parent context.Context, st credential.Store, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return st.Ping(ctx)
}
