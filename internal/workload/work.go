package workload

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// producerWork sends the units of each batch, wrapping them in
// transactions when the batcher has a group size.
type producerWork struct {
	producer Producer
	tx       Transactional
	batcher  Batcher
	source   MessageSource
	log      *zap.Logger

	// touched only from the scheduler goroutine
	open      bool
	openSince int64
}

// tick reports zero acknowledged units whenever it fails, even if earlier
// segments of the batch were committed.
func (w *producerWork) tick(ctx context.Context, b Batch) (Result, error) {
	var res Result
	fail := func(op string, err error) (Result, error) {
		return Result{Attempted: res.Attempted}, &TransportError{Op: op, Seq: b.Seq, Err: err}
	}

	for _, seg := range w.batcher.Segments(b.First, b.Size) {
		msgs, err := w.messages(seg)
		if err != nil {
			return fail("build", err)
		}

		if seg.Begin {
			if err := w.tx.BeginTransaction(ctx); err != nil {
				return fail("begin transaction", err)
			}
			w.open = true
			w.openSince = seg.First
		}

		acked, err := w.producer.SendBatch(ctx, msgs)
		res.Attempted += seg.Len
		if err != nil {
			return fail("send", err)
		}
		res.Acknowledged += acked

		if seg.Commit {
			if err := w.commit(ctx, seg.First+int64(seg.Len)-1); err != nil {
				return fail("commit transaction", err)
			}
		}
	}
	return res, nil
}

func (w *producerWork) messages(seg Segment) ([]Message, error) {
	msgs := make([]Message, 0, seg.Len)
	for i := seg.First; i < seg.First+int64(seg.Len); i++ {
		m, err := w.source.Message(i)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		m.Index = i
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (w *producerWork) commit(ctx context.Context, last int64) error {
	if err := w.tx.CommitTransaction(ctx); err != nil {
		return err
	}
	w.log.Debug("transaction committed",
		zap.Int64("from", w.openSince),
		zap.Int64("to", last),
	)
	w.open = false
	return nil
}

// finalize commits a transaction left open when the run stopped, e.g. a
// trailing partial group or a failure mid-group.
func (w *producerWork) finalize(timeout time.Duration) error {
	if !w.open {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	w.log.Info("committing open transaction", zap.Int64("from", w.openSince))
	err := w.tx.CommitTransaction(ctx)
	w.open = false
	return err
}

// MinPollTimeout is the shortest wait a consumer poll is given, so that a
// zero PollTimeout does not spin against the binding.
const MinPollTimeout = 100 * time.Millisecond

// consumerWork polls one batch per tick and commits whatever it got.
type consumerWork struct {
	consumer    Consumer
	pollTimeout time.Duration
}

func (w *consumerWork) tick(ctx context.Context, b Batch) (Result, error) {
	records, err := w.consumer.PollBatch(ctx, max(w.pollTimeout, MinPollTimeout), b.Size)
	if err != nil {
		return Result{}, &TransportError{Op: "poll", Seq: b.Seq, Err: err}
	}
	if len(records) == 0 {
		return Result{}, nil
	}

	// Records beyond the target are consumed and committed, not counted.
	n := len(records)
	if n > b.Size {
		n = b.Size
	}
	if err := w.consumer.Commit(ctx); err != nil {
		return Result{Attempted: n}, &TransportError{Op: "commit", Seq: b.Seq, Err: err}
	}
	return Result{Attempted: n, Acknowledged: n}, nil
}
