package task

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNilFunc                = errors.New("task: function must not be nil")
	ErrNilPool                = errors.New("task: submitter must not be nil")
	ErrNilCancellation        = errors.New("task: cancellation must not be nil")
	ErrAlreadyCancelled       = errors.New("task: the cancellation object is already cancelled")
	ErrNegativeTimeout        = errors.New("task: timeout must not be negative")
	ErrInvalidPollingInterval = errors.New("task: polling interval must be positive")
	ErrIndexOutOfRange        = errors.New("task: index out of range")
	ErrAlreadyExecuted        = errors.New("task: collection has already been executed")
	ErrInvalidCount           = errors.New("task: invalid result count")
	ErrNilObservers           = errors.New("task: observers must not be nil")
	ErrUnknownOrder           = errors.New("task: unknown result order")
	ErrNoResult               = errors.New("task: no result")

	// ErrCancelled matches every *CancelledError.
	ErrCancelled = errors.New("task: cancelled")
	// ErrTimedOut matches every *TimeoutError.
	ErrTimedOut = errors.New("task: timed out")
)

// CancelledError is the error of a task stopped through its Cancellation.
// Err holds what the task function itself returned after it was stopped.
type CancelledError struct {
	Reason string
	Source string
	Err    error
}

func (e *CancelledError) Error() string {
	var b strings.Builder
	b.WriteString("task was cancelled")
	if e.Source != "" {
		b.WriteString(" by ")
		b.WriteString(e.Source)
	}
	if e.Reason != "" {
		b.WriteString(", reason: ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// TimeoutError is the error of a task that outlived its timeout.
type TimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return "task timed out after " + formatMillis(e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimedOut }

// ResultError is returned when reading the value of a failed Result.
type ResultError struct {
	TaskID ID
	Cause  error
}

func (e *ResultError) Error() string {
	return "there was no result, as an error occurred during execution of a task: " + e.Cause.Error()
}

func (e *ResultError) Unwrap() error { return e.Cause }

func (e *ResultError) Is(target error) bool { return target == ErrNoResult }

// withFunctionErr attaches the function's own error to a watchdog cause.
func withFunctionErr(cause, fnErr error) error {
	switch c := cause.(type) {
	case *CancelledError:
		out := *c
		out.Err = fnErr
		return &out
	case *TimeoutError:
		out := *c
		out.Err = fnErr
		return &out
	default:
		return cause
	}
}
