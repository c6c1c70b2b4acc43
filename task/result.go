package task

// Result is the one outcome of one task execution: a value or an error,
// never both. Action tasks succeed without a value.
type Result[R any] struct {
	taskID   ID
	value    R
	hasValue bool
	err      error
}

func successResult[R any](id ID, value R, hasValue bool) Result[R] {
	return Result[R]{taskID: id, value: value, hasValue: hasValue}
}

func failedResult[R any](id ID, err error) Result[R] {
	return Result[R]{taskID: id, err: err}
}

// TaskID returns the ID of the task that produced the result.
func (r Result[R]) TaskID() ID { return r.taskID }

// Success reports whether the task completed without error.
func (r Result[R]) Success() bool { return r.err == nil }

// HasValue reports whether the result carries a function return value.
func (r Result[R]) HasValue() bool { return r.hasValue }

// Err returns the cause of failure, or nil on success.
func (r Result[R]) Err() error { return r.err }

// Value returns the task's return value. On a failed result it returns a
// *ResultError wrapping the cause and never a fabricated value.
func (r Result[R]) Value() (R, error) {
	if r.err != nil {
		var zero R
		return zero, &ResultError{TaskID: r.taskID, Cause: r.err}
	}
	return r.value, nil
}
