package executor

import (
	"errors"
)

// Normalized executor errors. The uppercase codes double as API error codes.
var (
	// ErrBusy is returned by Submit when the slot is occupied and the
	// admission budget is exhausted, and by Reset while a job is in flight.
	ErrBusy = errors.New("BUSY")

	// ErrTimeout is returned by Wait when the caller's patience runs out
	// before the in-flight job completes. The job keeps running.
	ErrTimeout = errors.New("TIMEOUT")

	// ErrNotFound indicates the external tool could not be located.
	ErrNotFound = errors.New("TOOL_NOT_FOUND")

	// ErrAborted indicates the job was terminated by an explicit Cancel.
	ErrAborted = errors.New("ABORTED")

	// ErrExecution indicates an unexpected process-level failure.
	ErrExecution = errors.New("EXECUTION_FAILED")
)
