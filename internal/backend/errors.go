package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// backendError wraps a transport failure with the tier it occurred on.
type backendError struct {
	tierID string
	op     string
	err    error
}

func (e backendError) Error() string {
	return fmt.Sprintf("backend %s %s: %v", e.tierID, e.op, e.err)
}

func (e backendError) Unwrap() error { return e.err }

// Errf constructs a backend error for the given tier and operation.
func Errf(tierID, op string, err error) error {
	return backendError{tierID: tierID, op: op, err: err}
}

// IsBackendError reports whether err originated in the backend transport.
func IsBackendError(err error) bool {
	var be backendError
	return errors.As(err, &be)
}

// IsTimeout reports whether err was caused by a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
