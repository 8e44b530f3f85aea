package workload

import (
	"sync"
	"time"
)

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "pending"
	}
}

// Completion is a one-shot gate. The first Resolve fixes the outcome, later
// calls are ignored.
type Completion struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
	err     error
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve records the terminal outcome. It reports whether this call was
// the effective one.
func (c *Completion) Resolve(outcome Outcome, err error) bool {
	resolved := false
	c.once.Do(func() {
		c.outcome = outcome
		c.err = err
		close(c.done)
		resolved = true
	})
	return resolved
}

func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome and the error it was resolved with, or
// OutcomePending if Resolve has not been called yet.
func (c *Completion) Result() (Outcome, error) {
	select {
	case <-c.done:
		return c.outcome, c.err
	default:
		return OutcomePending, nil
	}
}

// Await blocks until the gate resolves or timeout elapses, and reports
// whether it resolved.
func (c *Completion) Await(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return true
	case <-timer.C:
		return false
	}
}
