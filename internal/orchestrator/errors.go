package orchestrator

import (
	"fmt"
	"strings"
)

// tierNotFoundError signals a tier id missing from the catalog.
type tierNotFoundError struct{ id string }

func (e tierNotFoundError) Error() string { return "tier not found: " + e.id }

// ErrTierNotFound returns an error for a tier id not present in the catalog.
func ErrTierNotFound(id string) error { return tierNotFoundError{id: id} }

// IsTierNotFound reports whether the error indicates a missing tier id.
func IsTierNotFound(err error) bool {
	_, ok := err.(tierNotFoundError)
	return ok
}

// loadTimeoutError signals a tier that failed to reach ready in time. It is
// treated as a backend failure and triggers fallback.
type loadTimeoutError struct {
	tierID  string
	timeout string
}

func (e loadTimeoutError) Error() string {
	return fmt.Sprintf("tier %s: load timeout after %s", e.tierID, e.timeout)
}

// IsLoadTimeout reports whether err indicates a tier load that timed out.
func IsLoadTimeout(err error) bool {
	_, ok := err.(loadTimeoutError)
	return ok
}

// backendUnavailableError is returned once the fallback chain is exhausted.
// It carries every attempted tier with its failure reason so callers can
// report what was tried.
type backendUnavailableError struct {
	attempts []Attempt
}

func (e backendUnavailableError) Error() string {
	parts := make([]string, 0, len(e.attempts))
	for _, a := range e.attempts {
		parts = append(parts, fmt.Sprintf("%s (%s)", a.TierID, a.Reason))
	}
	return "backend unavailable, attempted: " + strings.Join(parts, ", ")
}

// ErrBackendUnavailable returns an error for an exhausted fallback chain.
func ErrBackendUnavailable(attempts []Attempt) error {
	return backendUnavailableError{attempts: attempts}
}

// Attempts returns the per-tier failure record behind the error.
func (e backendUnavailableError) Attempts() []Attempt { return e.attempts }

// IsBackendUnavailable reports whether err indicates an exhausted fallback chain.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}

// AttemptsFromError extracts the attempted-tier record from a
// BackendUnavailable error, if present.
func AttemptsFromError(err error) []Attempt {
	if e, ok := err.(backendUnavailableError); ok {
		return e.attempts
	}
	return nil
}
