package workload

import (
	"context"
	"time"
)

// Message is one unit handed to a producer binding.
type Message struct {
	Index   int64
	Key     string
	Value   []byte
	Headers map[string]string
}

// Record is one unit returned by a consumer binding.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Binding is the transport a Driver owns for the lifetime of a run.
type Binding interface {
	Close() error
}

// Producer sends messages. A non-nil error means none of the messages of
// that call count as acknowledged; the returned count is only meaningful
// when err is nil.
type Producer interface {
	Binding
	SendBatch(ctx context.Context, msgs []Message) (int, error)
}

// Consumer polls records and commits the offsets of what it returned. An
// empty poll is not an error.
type Consumer interface {
	Binding
	PollBatch(ctx context.Context, timeout time.Duration, max int) ([]Record, error)
	Commit(ctx context.Context) error
}

// Transactional is implemented by producers that can group sends.
type Transactional interface {
	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
}

// Preparer is implemented by bindings with a one-time setup step that must
// succeed before the first tick.
type Preparer interface {
	Setup(ctx context.Context) error
}

// MessageSource builds the message for a unit index.
type MessageSource interface {
	Message(index int64) (Message, error)
}

// MessageSourceFunc adapts a function to MessageSource.
type MessageSourceFunc func(index int64) (Message, error)

func (f MessageSourceFunc) Message(index int64) (Message, error) { return f(index) }
