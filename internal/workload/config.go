package workload

import (
	"strings"
	"time"
)

// DefaultCompletionGrace is added to every run's timeout budget.
const DefaultCompletionGrace = 60 * time.Second

// Config describes one run. It is built once by the config loader and
// passed by value.
type Config struct {
	Topic       string
	TargetCount int

	// 0 means burst: every unit is issued in a single tick
	PaceInterval time.Duration

	// 0 means no transactions
	TransactionGroupSize int

	// Consumer only; polls wait at least MinPollTimeout
	PollTimeout time.Duration

	CompletionGrace time.Duration
}

// Burst reports whether the run issues all units in one tick.
func (c Config) Burst() bool {
	return c.PaceInterval == 0
}

// Transactional reports whether sends are grouped into transactions.
func (c Config) Transactional() bool {
	return c.TransactionGroupSize > 0
}

// Budget is the time the caller waits for the run to resolve before
// declaring it failed.
func (c Config) Budget() time.Duration {
	pace := c.PaceInterval
	if pace < time.Millisecond {
		pace = time.Millisecond
	}
	return time.Duration(c.TargetCount)*pace + c.CompletionGrace
}

// Validate checks the config before any scheduling happens.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Topic) == "":
		return &ConfigurationError{Field: "topic", Reason: "topic is required"}
	case c.TargetCount <= 0:
		return &ConfigurationError{Field: "targetCount", Reason: "must be greater than 0"}
	case c.PaceInterval < 0:
		return &ConfigurationError{Field: "paceInterval", Reason: "must not be negative"}
	case c.TransactionGroupSize < 0:
		return &ConfigurationError{Field: "transactionGroupSize", Reason: "must be greater than 0 when set"}
	case c.PollTimeout < 0:
		return &ConfigurationError{Field: "pollTimeout", Reason: "must not be negative"}
	case c.CompletionGrace < 0:
		return &ConfigurationError{Field: "completionGrace", Reason: "must not be negative"}
	}
	return nil
}
