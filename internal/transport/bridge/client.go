// Package bridge binds the workload driver to the HTTP bridge REST API.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"testclients/internal/workload"
)

type Config struct {
	BaseURL string // e.g. http://my-bridge:8080
	Topic   string

	// Consumer
	GroupID      string
	ConsumerName string // generated when empty

	Timeout    time.Duration
	HTTPClient *http.Client
}

func (c Config) validate() error {
	if c.BaseURL == "" {
		return &workload.ConfigurationError{Field: "bridgeUrl", Reason: "bridge host is required"}
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return &workload.ConfigurationError{Field: "bridgeUrl", Reason: err.Error()}
	}
	if c.Topic == "" {
		return &workload.ConfigurationError{Field: "topic", Reason: "topic is required"}
	}
	return nil
}

type client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func newClient(cfg Config, log *zap.Logger) *client {
	hc := cfg.HTTPClient
	if hc == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = 4
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout, Transport: t}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &client{base: strings.TrimRight(cfg.BaseURL, "/"), http: hc, log: log}
}

// do sends body (JSON-encoded when non-nil), checks the status against
// want and decodes the response into out when non-nil.
func (c *client) do(ctx context.Context, method, target, contentType string, body, out any, want ...int) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if out != nil {
		req.Header.Set("Accept", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !statusIn(resp.StatusCode, want) {
		se := &StatusError{Status: resp.StatusCode}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(b, &se.Body)
		if se.Body.Message == "" {
			se.Body.Message = strings.TrimSpace(string(b))
		}
		return se
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, target, err)
	}
	return nil
}

func statusIn(code int, want []int) bool {
	for _, w := range want {
		if code == w {
			return true
		}
	}
	return false
}

// Producer posts batches of records to /topics/{topic}.
type Producer struct {
	c     *client
	topic string
}

var _ workload.Producer = (*Producer)(nil)

func NewProducer(cfg Config, log *zap.Logger) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Producer{c: newClient(cfg, log), topic: cfg.Topic}, nil
}

// SendBatch returns an error if the bridge rejects the request or any
// single record; acknowledged counts are only returned when all records
// carry an offset.
func (p *Producer) SendBatch(ctx context.Context, msgs []workload.Message) (int, error) {
	req := ProduceRequest{Records: make([]ProducerRecord, 0, len(msgs))}
	for _, m := range msgs {
		rec := ProducerRecord{
			Value:   EncodeString(string(m.Value)),
			Headers: EncodeHeaders(m.Headers),
		}
		if m.Key != "" {
			rec.Key = EncodeString(m.Key)
		}
		req.Records = append(req.Records, rec)
	}

	var resp ProduceResponse
	target := p.c.base + "/topics/" + url.PathEscape(p.topic)
	if err := p.c.do(ctx, http.MethodPost, target, ContentTypeJSON, req, &resp, http.StatusOK); err != nil {
		return 0, err
	}
	return countAcked(resp, len(msgs))
}

func countAcked(resp ProduceResponse, sent int) (int, error) {
	if len(resp.Offsets) != sent {
		return 0, fmt.Errorf("bridge acknowledged %d of %d records", len(resp.Offsets), sent)
	}
	var rejected []string
	for _, o := range resp.Offsets {
		if o.ErrorCode != 0 {
			rejected = append(rejected, fmt.Sprintf("%d %s", o.ErrorCode, o.Message))
		}
	}
	if len(rejected) > 0 {
		return 0, fmt.Errorf("%d of %d records rejected: %s", len(rejected), sent, rejected[0])
	}
	return sent, nil
}

func (p *Producer) Close() error {
	p.c.http.CloseIdleConnections()
	return nil
}

// Consumer is a bridge consumer instance. Setup registers and subscribes
// it; Close deletes it.
type Consumer struct {
	c       *client
	topic   string
	group   string
	name    string
	baseURI string
}

var (
	_ workload.Consumer = (*Consumer)(nil)
	_ workload.Preparer = (*Consumer)(nil)
)

func NewConsumer(cfg Config, log *zap.Logger) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, &workload.ConfigurationError{Field: "groupId", Reason: "consumer group is required"}
	}
	name := cfg.ConsumerName
	if name == "" {
		name = "testclients-" + uuid.NewString()
	}
	return &Consumer{c: newClient(cfg, log), topic: cfg.Topic, group: cfg.GroupID, name: name}, nil
}

// Setup creates the consumer instance and subscribes it to the topic. It
// is called once and never retried.
func (c *Consumer) Setup(ctx context.Context) error {
	if c.baseURI != "" {
		return errors.New("consumer already set up")
	}

	req := CreateConsumerRequest{
		Name:             c.name,
		Format:           "json",
		AutoOffsetReset:  "earliest",
		EnableAutoCommit: false,
	}
	var created CreateConsumerResponse
	target := c.c.base + "/consumers/" + url.PathEscape(c.group)
	if err := c.c.do(ctx, http.MethodPost, target, ContentTypeV2, req, &created, http.StatusOK); err != nil {
		return &workload.SetupError{Step: "create consumer", Err: err}
	}
	c.baseURI = strings.TrimRight(created.BaseURI, "/")
	if c.baseURI == "" {
		c.baseURI = target + "/instances/" + url.PathEscape(c.name)
	}
	c.c.log.Debug("bridge consumer created", zap.String("instance", created.InstanceID), zap.String("baseUri", c.baseURI))

	sub := SubscriptionRequest{Topics: []string{c.topic}}
	if err := c.c.do(ctx, http.MethodPost, c.baseURI+"/subscription", ContentTypeV2, sub, nil, http.StatusNoContent, http.StatusOK); err != nil {
		return &workload.SetupError{Step: "subscribe", Err: err}
	}
	return nil
}

// PollBatch fetches whatever the bridge has within timeout. The bridge has
// no record-count limit, so max is left to the caller.
func (c *Consumer) PollBatch(ctx context.Context, timeout time.Duration, max int) ([]workload.Record, error) {
	if c.baseURI == "" {
		return nil, errors.New("consumer is not set up")
	}

	target := c.baseURI + "/records?timeout=" + strconv.FormatInt(timeout.Milliseconds(), 10)
	var recs []ConsumerRecord
	if err := c.c.do(ctx, http.MethodGet, target, ContentTypeJSON, nil, &recs, http.StatusOK); err != nil {
		return nil, err
	}

	out := make([]workload.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, workload.Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       DecodeValue(r.Key),
			Value:     DecodeValue(r.Value),
		})
	}
	return out, nil
}

// Commit commits the offsets of everything fetched so far.
func (c *Consumer) Commit(ctx context.Context) error {
	return c.c.do(ctx, http.MethodPost, c.baseURI+"/offsets", ContentTypeV2, nil, nil, http.StatusNoContent, http.StatusOK)
}

func (c *Consumer) Close() error {
	if c.baseURI == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.c.do(ctx, http.MethodDelete, c.baseURI, ContentTypeV2, nil, nil, http.StatusNoContent, http.StatusOK)
	c.baseURI = ""
	c.c.http.CloseIdleConnections()
	return err
}
