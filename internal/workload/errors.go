package workload

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyStarted is returned when Run is called on a driver that has
// left the Created state. Build a new Driver per run.
var ErrAlreadyStarted = errors.New("driver already started")

// ConfigurationError reports an invalid or missing parameter. It is raised
// before anything is scheduled.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// SetupError reports a failed one-time binding setup, such as registering a
// consumer with the HTTP bridge. It is never retried.
type SetupError struct {
	Step string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup %s failed: %v", e.Step, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// TransportError reports a failed send, poll or commit. It ends the run.
type TransportError struct {
	Op  string
	Seq int64
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed at batch %d: %v", e.Op, e.Seq, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports that the run did not resolve within its budget.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run did not complete within %s", e.Budget)
}
