package workload

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"testclients/internal/stats"
)

// Batch is the work handed to one tick.
type Batch struct {
	Seq   int64 // zero-based tick index
	First int64 // index of the first unit
	Size  int   // max units this tick may handle
}

// Result is what a tick reports back. Acknowledged never exceeds Attempted.
type Result struct {
	Attempted    int
	Acknowledged int
}

type TickFunc func(ctx context.Context, b Batch) (Result, error)

type SchedulerConfig struct {
	Target int
	Pace   time.Duration
	// Upper bound on Batch.Size; 0 means whatever is left of the target
	MaxBatch int

	Progress   *stats.Progress
	Completion *Completion
	Logger     *zap.Logger

	// OnStop runs on the worker goroutine after the last tick, before Done
	// is closed.
	OnStop func()
}

// Scheduler runs ticks one after another on a single goroutine until the
// target is reached, a tick fails or it is cancelled.
type Scheduler struct {
	cfg SchedulerConfig
	log *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	started atomic.Bool
}

func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Progress == nil {
		cfg.Progress = stats.NewProgress()
	}
	if cfg.Completion == nil {
		cfg.Completion = NewCompletion()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// Start launches the worker. Later calls are no-ops.
func (s *Scheduler) Start(tick TickFunc) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.loop(tick)
}

// Cancel stops future ticks. A tick already running sees its context
// cancelled and is left to return on its own.
func (s *Scheduler) Cancel() {
	s.cancel()
}

// Done is closed once the worker has exited and OnStop has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

func (s *Scheduler) loop(tick TickFunc) {
	defer close(s.stopped)
	defer s.cancel()
	if s.cfg.OnStop != nil {
		defer s.cfg.OnStop()
	}

	next := time.Now()
	for seq := int64(0); ; seq++ {
		if s.reached() {
			s.cfg.Completion.Resolve(OutcomeSuccess, nil)
			return
		}
		if !s.wait(next) {
			return
		}

		b := s.batch(seq)
		started := time.Now()
		res, err := tick(s.ctx, b)
		took := time.Since(started)
		next = started.Add(s.cfg.Pace)

		res = clampResult(res, b.Size)
		s.cfg.Progress.Record(res.Attempted, res.Acknowledged, took)
		s.log.Info("batch processed",
			zap.Int64("seq", b.Seq),
			zap.Int64("first", b.First),
			zap.Int("units", res.Attempted),
			zap.Int("acknowledged", res.Acknowledged),
			zap.Duration("took", took),
		)

		if err != nil {
			s.cfg.Completion.Resolve(OutcomeFailure, err)
			return
		}
		if s.reached() {
			s.cfg.Completion.Resolve(OutcomeSuccess, nil)
			return
		}
	}
}

func (s *Scheduler) batch(seq int64) Batch {
	attempted := s.cfg.Progress.Attempted()
	size := s.cfg.Target - int(attempted)
	if s.cfg.MaxBatch > 0 && size > s.cfg.MaxBatch {
		size = s.cfg.MaxBatch
	}
	return Batch{Seq: seq, First: int64(attempted), Size: size}
}

func (s *Scheduler) reached() bool {
	return s.cfg.Progress.Attempted() >= uint64(s.cfg.Target)
}

// wait sleeps until next and reports false if cancelled first.
func (s *Scheduler) wait(next time.Time) bool {
	if s.ctx.Err() != nil {
		return false
	}
	d := time.Until(next)
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func clampResult(r Result, size int) Result {
	if r.Attempted < 0 {
		r.Attempted = 0
	}
	if r.Attempted > size {
		r.Attempted = size
	}
	if r.Acknowledged < 0 {
		r.Acknowledged = 0
	}
	if r.Acknowledged > r.Attempted {
		r.Acknowledged = r.Attempted
	}
	return r
}
