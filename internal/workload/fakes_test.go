package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errRejected = errors.New("broker rejected record")

// fakeProducer records every call in order. Sends containing failIndex
// fail as a whole.
type fakeProducer struct {
	mu        sync.Mutex
	events    []string
	sends     [][]int64
	failIndex int64
	block     chan struct{}
	delay     time.Duration
	closed    bool
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{failIndex: -1}
}

func (p *fakeProducer) SendBatch(ctx context.Context, msgs []Message) (int, error) {
	if p.block != nil {
		<-p.block
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		idx = append(idx, m.Index)
	}
	p.sends = append(p.sends, idx)
	p.events = append(p.events, fmt.Sprintf("send %d..%d", idx[0], idx[len(idx)-1]))

	for _, i := range idx {
		if i == p.failIndex {
			return 0, errRejected
		}
	}
	return len(msgs), nil
}

func (p *fakeProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakeProducer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakeProducer) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakeProducer) Sends() [][]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]int64(nil), p.sends...)
}

// fakeTxProducer adds transactions and tracks the size of each committed
// group.
type fakeTxProducer struct {
	*fakeProducer
	open      bool
	pending   int
	committed []int
	overlap   bool
}

func newFakeTxProducer() *fakeTxProducer {
	return &fakeTxProducer{fakeProducer: newFakeProducer()}
}

func (p *fakeTxProducer) SendBatch(ctx context.Context, msgs []Message) (int, error) {
	n, err := p.fakeProducer.SendBatch(ctx, msgs)
	p.mu.Lock()
	p.pending += len(msgs)
	p.mu.Unlock()
	return n, err
}

func (p *fakeTxProducer) BeginTransaction(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		p.overlap = true
	}
	p.open = true
	p.pending = 0
	p.events = append(p.events, "begin")
	return nil
}

func (p *fakeTxProducer) CommitTransaction(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.committed = append(p.committed, p.pending)
	p.events = append(p.events, "commit")
	return nil
}

func (p *fakeTxProducer) Committed() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.committed...)
}

// fakeConsumer serves one scripted poll result per call.
type fakeConsumer struct {
	mu       sync.Mutex
	polls    [][]Record
	calls    int
	commits  int
	setupErr error
	setups   int
	timeouts []time.Duration
}

func (c *fakeConsumer) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setups++
	return c.setupErr
}

func (c *fakeConsumer) PollBatch(ctx context.Context, timeout time.Duration, max int) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	c.timeouts = append(c.timeouts, timeout)
	if i < len(c.polls) {
		return c.polls[i], nil
	}
	return nil, nil
}

func (c *fakeConsumer) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commits++
	return nil
}

func (c *fakeConsumer) Close() error { return nil }

func (c *fakeConsumer) Calls() (polls, commits, setups int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.commits, c.setups
}

func (c *fakeConsumer) Timeouts() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.timeouts...)
}

func records(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{Topic: "orders", Offset: int64(i), Value: []byte("v")}
	}
	return out
}
