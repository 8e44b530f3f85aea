package workload

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"testclients/internal/stats"
)

type State int32

const (
	StateCreated State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
)

const defaultDrainTimeout = 10 * time.Second

// Without an open transaction to commit there is nothing worth waiting for
// beyond a cancelled tick returning promptly.
const plainDrainTimeout = 100 * time.Millisecond

// Report is the terminal view of a run.
type Report struct {
	State  State
	Role   string
	Topic  string
	Target int
	stats.Snapshot

	Started  time.Time
	Duration time.Duration
	Err      error
}

type Option func(*Driver)

func WithLogger(log *zap.Logger) Option {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

// WithMessageSource sets how producer payloads are built.
func WithMessageSource(src MessageSource) Option {
	return func(d *Driver) {
		if src != nil {
			d.source = src
		}
	}
}

// WithDrainTimeout bounds how long Run waits for the worker to stop (and
// commit any open transaction) once the run has resolved.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		d.drainTimeout = timeout
	}
}

// Driver runs one workload against one binding. It is single use.
type Driver struct {
	cfg          Config
	binding      Binding
	log          *zap.Logger
	source       MessageSource
	drainTimeout time.Duration

	state      atomic.Int32
	progress   *stats.Progress
	completion *Completion
	scheduler  *Scheduler
	role       string

	producer    *producerWork
	finalizeErr error // written by the worker in OnStop, read after Done
	drained     bool

	started time.Time
}

func NewDriver(cfg Config, binding Binding, opts ...Option) *Driver {
	d := &Driver{
		cfg:          cfg,
		binding:      binding,
		log:          zap.NewNop(),
		drainTimeout: defaultDrainTimeout,
		progress:     stats.NewProgress(),
		completion:   NewCompletion(),
		source:       MessageSourceFunc(defaultMessage),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultMessage(index int64) (Message, error) {
	return Message{Value: []byte(fmt.Sprintf("Hello world - %d", index))}, nil
}

func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) Config() Config {
	return d.cfg
}

// Progress returns the live counters. Safe to call from any goroutine.
func (d *Driver) Progress() stats.Snapshot {
	return d.progress.Snapshot()
}

// Run executes the workload and blocks until it reaches a terminal state.
// The returned error is nil exactly when the report state is
// StateCompleted.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	if !d.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return Report{}, ErrAlreadyStarted
	}
	d.started = time.Now()

	tick, err := d.prepare(ctx)
	if err != nil {
		d.completion.Resolve(OutcomeFailure, err)
		d.closeBinding()
		rep := d.CheckFinalState()
		return rep, rep.Err
	}

	d.log.Info("run started",
		zap.String("role", d.role),
		zap.String("topic", d.cfg.Topic),
		zap.Int("target", d.cfg.TargetCount),
		zap.Duration("pace", d.cfg.PaceInterval),
		zap.Int("transactionGroupSize", d.cfg.TransactionGroupSize),
		zap.Duration("budget", d.cfg.Budget()),
	)

	d.scheduler.Start(tick)
	d.AwaitCompletion(ctx)
	d.drain()
	if d.drained {
		d.closeBinding()
	} else {
		// The worker still uses the binding; close it once the worker exits.
		go func() {
			<-d.scheduler.Done()
			d.closeBinding()
		}()
	}

	rep := d.CheckFinalState()
	return rep, rep.Err
}

func (d *Driver) prepare(ctx context.Context) (TickFunc, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	if d.binding == nil {
		return nil, &ConfigurationError{Field: "binding", Reason: "no transport binding"}
	}

	var (
		tick     TickFunc
		maxBatch int
		onStop   func()
	)
	switch b := d.binding.(type) {
	case Producer:
		d.role = RoleProducer
		w := &producerWork{
			producer: b,
			batcher:  Batcher{GroupSize: d.cfg.TransactionGroupSize},
			source:   d.source,
			log:      d.log,
		}
		if d.cfg.Transactional() {
			tx, ok := d.binding.(Transactional)
			if !ok {
				return nil, &ConfigurationError{Field: "transactionGroupSize", Reason: "binding does not support transactions"}
			}
			w.tx = tx
			onStop = func() {
				d.finalizeErr = w.finalize(d.drainTimeout)
			}
		}
		d.producer = w
		tick = w.tick
		if !d.cfg.Burst() {
			maxBatch = 1
		}
	case Consumer:
		d.role = RoleConsumer
		if d.cfg.Transactional() {
			return nil, &ConfigurationError{Field: "transactionGroupSize", Reason: "only producers can be transactional"}
		}
		w := &consumerWork{consumer: b, pollTimeout: d.cfg.PollTimeout}
		tick = w.tick
	default:
		return nil, &ConfigurationError{Field: "binding", Reason: fmt.Sprintf("%T is neither a producer nor a consumer", d.binding)}
	}

	if p, ok := d.binding.(Preparer); ok {
		if err := p.Setup(ctx); err != nil {
			var setupErr *SetupError
			if errors.As(err, &setupErr) {
				return nil, err
			}
			return nil, &SetupError{Step: "binding", Err: err}
		}
	}

	d.scheduler = NewScheduler(SchedulerConfig{
		Target:     d.cfg.TargetCount,
		Pace:       d.cfg.PaceInterval,
		MaxBatch:   maxBatch,
		Progress:   d.progress,
		Completion: d.completion,
		Logger:     d.log,
		OnStop:     onStop,
	})
	return tick, nil
}

// AwaitCompletion blocks until the run resolves, the budget elapses or ctx
// is done. The latter two resolve the run as failed and cancel the
// scheduler.
func (d *Driver) AwaitCompletion(ctx context.Context) Outcome {
	if d.scheduler == nil {
		outcome, _ := d.completion.Result()
		return outcome
	}

	budget := d.cfg.Budget()
	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-d.completion.Done():
	case <-timer.C:
		if d.completion.Resolve(OutcomeFailure, &TimeoutError{Budget: budget}) {
			d.log.Warn("run timed out", zap.Duration("budget", budget))
		}
		d.scheduler.Cancel()
	case <-ctx.Done():
		d.completion.Resolve(OutcomeFailure, ctx.Err())
		d.scheduler.Cancel()
	}

	outcome, _ := d.completion.Result()
	return outcome
}

// drain waits for the worker to exit so that any open transaction is
// committed before the outcome is reported. Runs without transactions only
// wait briefly.
func (d *Driver) drain() {
	d.scheduler.Cancel()

	timeout := d.drainTimeout
	if !d.transactional() && timeout > plainDrainTimeout {
		timeout = plainDrainTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-d.scheduler.Done():
		d.drained = true
	case <-timer.C:
		d.log.Error("worker did not stop in time",
			zap.Duration("drainTimeout", timeout),
			zap.Bool("transactional", d.transactional()),
		)
	}
}

func (d *Driver) transactional() bool {
	return d.producer != nil && d.producer.tx != nil
}

func (d *Driver) closeBinding() {
	if d.binding == nil {
		return
	}
	if err := d.binding.Close(); err != nil {
		d.log.Warn("closing binding", zap.Error(err))
	}
}

// CheckFinalState turns the resolved run into the caller-visible verdict:
// completed only if the run resolved as a success, every target unit
// succeeded and no open transaction failed to commit. Units acknowledged
// after a timeout or cancellation do not change a failed outcome.
func (d *Driver) CheckFinalState() Report {
	outcome, runErr := d.completion.Result()
	snap := d.progress.Snapshot()

	var finalizeErr error
	if d.drained {
		finalizeErr = d.finalizeErr
	}

	state := StateFailed
	if outcome == OutcomeSuccess && snap.Succeeded == uint64(d.cfg.TargetCount) && finalizeErr == nil {
		state = StateCompleted
	}

	var err error
	if state == StateFailed {
		var merr *multierror.Error
		if runErr != nil {
			merr = multierror.Append(merr, runErr)
		}
		if finalizeErr != nil {
			merr = multierror.Append(merr, &TransportError{Op: "finalize transaction", Seq: int64(snap.Batches), Err: finalizeErr})
		}
		err = merr.ErrorOrNil()
		if err == nil {
			err = fmt.Errorf("%d of %d units succeeded", snap.Succeeded, d.cfg.TargetCount)
		} else if merr.Len() == 1 {
			err = merr.Errors[0]
		}
	}

	if d.State() == StateRunning {
		d.state.Store(int32(state))
	}

	rep := Report{
		State:    state,
		Role:     d.role,
		Topic:    d.cfg.Topic,
		Target:   d.cfg.TargetCount,
		Snapshot: snap,
		Started:  d.started,
		Duration: time.Since(d.started),
		Err:      err,
	}

	fields := []zap.Field{
		zap.String("state", state.String()),
		zap.Uint64("succeeded", snap.Succeeded),
		zap.Int("target", d.cfg.TargetCount),
		zap.Uint64("attempted", snap.Attempted),
		zap.Uint64("failed", snap.Failed),
		zap.Uint64("batches", snap.Batches),
		zap.Duration("duration", rep.Duration),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	d.log.Info("run finished", fields...)
	return rep
}
