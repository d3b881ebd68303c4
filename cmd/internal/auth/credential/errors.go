package credential

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned when no usable backend can be derived from Config.
	ErrConfig = errors.New("invalid credential store config")

	// ErrNilStore is returned when a component is constructed without a store.
	ErrNilStore = errors.New("nil credential store")
)

// StoreError reports an I/O, statement or constraint failure at the persistence boundary.
//
// Op is a stable operation name ("credential.execute", "credential.commit", ...).
// The statement text is deliberately not part of the error so it can never leak
// into client-facing responses.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Op + ": store failure"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err (or anything it wraps) is a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
