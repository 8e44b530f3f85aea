// Package kafka binds the workload driver to a broker over the native
// protocol using franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"testclients/internal/workload"
)

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string

	// Producer: a transactional id enables BeginTransaction/CommitTransaction.
	// Set Transactional without an id to get a generated one.
	Transactional   bool
	TransactionalID string
	Acks            string // all, leader, none

	// Consumer
	GroupID string
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return &workload.ConfigurationError{Field: "bootstrapServers", Reason: "at least one broker is required"}
	}
	if c.Topic == "" {
		return &workload.ConfigurationError{Field: "topic", Reason: "topic is required"}
	}
	return nil
}

// producerOpts is split out so the option set can be checked without a
// broker.
func producerOpts(cfg Config) ([]kgo.Opt, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	switch cfg.Acks {
	case "", "all":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	case "leader", "1":
		if cfg.Transactional {
			return nil, &workload.ConfigurationError{Field: "acks", Reason: "transactions require acks=all"}
		}
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case "none", "0":
		if cfg.Transactional {
			return nil, &workload.ConfigurationError{Field: "acks", Reason: "transactions require acks=all"}
		}
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	default:
		return nil, &workload.ConfigurationError{Field: "acks", Reason: fmt.Sprintf("unknown value %q", cfg.Acks)}
	}

	if cfg.Transactional {
		id := cfg.TransactionalID
		if id == "" {
			id = "testclients-" + uuid.NewString()
		}
		opts = append(opts, kgo.TransactionalID(id))
	}
	return opts, nil
}

func consumerOpts(cfg Config) ([]kgo.Opt, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, &workload.ConfigurationError{Field: "groupId", Reason: "consumer group is required"}
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	return opts, nil
}

// Producer sends through a kgo client it owns.
type Producer struct {
	client *kgo.Client
	topic  string
	log    *zap.Logger
}

var (
	_ workload.Producer      = (*Producer)(nil)
	_ workload.Transactional = (*Producer)(nil)
)

func NewProducer(cfg Config, log *zap.Logger) (*Producer, error) {
	opts, err := producerOpts(cfg)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{client: client, topic: cfg.Topic, log: log}, nil
}

// SendBatch produces msgs and waits for every acknowledgement. Any failed
// record fails the whole call.
func (p *Producer) SendBatch(ctx context.Context, msgs []workload.Message) (int, error) {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		records = append(records, toRecord(p.topic, m))
	}

	results := p.client.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return 0, err
	}
	return len(results), nil
}

func (p *Producer) BeginTransaction(ctx context.Context) error {
	return p.client.BeginTransaction()
}

func (p *Producer) CommitTransaction(ctx context.Context) error {
	// ProduceSync has already waited for every record, nothing to flush
	return p.client.EndTransaction(ctx, kgo.TryCommit)
}

func (p *Producer) Close() error {
	p.client.Close()
	p.log.Debug("kafka producer closed")
	return nil
}

func toRecord(topic string, m workload.Message) *kgo.Record {
	r := &kgo.Record{Topic: topic, Value: m.Value}
	if m.Key != "" {
		r.Key = []byte(m.Key)
	}
	for k, v := range m.Headers {
		r.Headers = append(r.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return r
}

// Consumer polls a consumer group and commits manually.
type Consumer struct {
	client *kgo.Client
	log    *zap.Logger
}

var _ workload.Consumer = (*Consumer)(nil)

func NewConsumer(cfg Config, log *zap.Logger) (*Consumer, error) {
	opts, err := consumerOpts(cfg)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{client: client, log: log}, nil
}

// PollBatch waits up to timeout for at most max records. Running out of
// time is an empty poll, not an error.
func (c *Consumer) PollBatch(ctx context.Context, timeout time.Duration, max int) ([]workload.Record, error) {
	pollCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	fetches := c.client.PollRecords(pollCtx, max)
	if fetches.IsClientClosed() {
		return nil, kgo.ErrClientClosed
	}
	if err := fetchError(ctx, fetches); err != nil {
		return nil, err
	}

	var out []workload.Record
	fetches.EachRecord(func(r *kgo.Record) {
		out = append(out, workload.Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Value:     r.Value,
		})
	})
	return out, nil
}

// fetchError returns the first real fetch error. Deadline errors from the
// poll timeout are dropped unless the parent context is done too.
func fetchError(parent context.Context, fetches kgo.Fetches) error {
	for _, fe := range fetches.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			if parent.Err() != nil {
				return parent.Err()
			}
			continue
		}
		return fmt.Errorf("fetch %s[%d]: %w", fe.Topic, fe.Partition, fe.Err)
	}
	return nil
}

func (c *Consumer) Commit(ctx context.Context) error {
	return c.client.CommitUncommittedOffsets(ctx)
}

func (c *Consumer) Close() error {
	c.client.Close()
	c.log.Debug("kafka consumer closed")
	return nil
}
