package task

import (
	"errors"
	"fmt"

	"inferd/pkg/types"
)

type notFoundError struct{ id string }

func (e *notFoundError) Error() string { return fmt.Sprintf("task %s not found", e.id) }

// IsNotFound reports whether err means the task id is unknown.
func IsNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

type notPausedError struct {
	id     string
	status types.TaskStatus
}

func (e *notPausedError) Error() string {
	return fmt.Sprintf("task %s is %s, not paused", e.id, e.status)
}

// ErrNotPaused returns the error reported when resume is requested for a
// task in the given non-paused state.
func ErrNotPaused(id string, status types.TaskStatus) error {
	return &notPausedError{id: id, status: status}
}

// IsNotPaused reports whether err means resume was requested for a task
// that is not in the paused state.
func IsNotPaused(err error) bool {
	var np *notPausedError
	return errors.As(err, &np)
}

type notRunningError struct{ id string }

func (e *notRunningError) Error() string { return fmt.Sprintf("task %s is not running", e.id) }

// IsNotRunning reports whether err means interrupt was requested for a task
// with no active run loop.
func IsNotRunning(err error) bool {
	var nr *notRunningError
	return errors.As(err, &nr)
}

// RetryableError marks a step failure as transient. The manager retries the
// step up to its retry cap before failing the task.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return "retryable: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is marked transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
