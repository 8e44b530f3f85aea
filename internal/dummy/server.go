package dummy

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"testclients/internal/transport/bridge"
)

type ServerConfig struct {
	Port int

	// Every request sleeps a random duration up to MaxLatency
	MaxLatency time.Duration
	// Share (0-1) of produced records rejected at random
	ErrorRate float64
	// Reject every Nth produced record, counted across the server's lifetime
	RejectEvery int
}

type record struct {
	key     json.RawMessage
	value   json.RawMessage
	headers []bridge.Header
}

type consumer struct {
	group  string
	topics []string
	// next offset to fetch per topic
	fetched map[string]int64
}

// Bridge is an in-memory stand-in for the HTTP bridge: one partition per
// topic, consumer groups with committed offsets.
type Bridge struct {
	cfg ServerConfig
	log *zap.Logger

	mu     sync.Mutex
	topics map[string][]record
	// keyed by group/name
	consumers map[string]*consumer
	// group -> topic -> offset
	committed map[string]map[string]int64
	produced  int
}

func NewBridge(cfg ServerConfig, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		cfg:       cfg,
		log:       log,
		topics:    make(map[string][]record),
		consumers: make(map[string]*consumer),
		committed: make(map[string]map[string]int64),
	}
}

func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthy", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /topics/{topic}", b.produce)
	mux.HandleFunc("POST /consumers/{group}", b.createConsumer)
	mux.HandleFunc("POST /consumers/{group}/instances/{name}/subscription", b.subscribe)
	mux.HandleFunc("GET /consumers/{group}/instances/{name}/records", b.records)
	mux.HandleFunc("POST /consumers/{group}/instances/{name}/offsets", b.commit)
	mux.HandleFunc("DELETE /consumers/{group}/instances/{name}", b.deleteConsumer)

	if b.cfg.MaxLatency <= 0 {
		return mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Int63n(int64(b.cfg.MaxLatency))))
		mux.ServeHTTP(w, r)
	})
}

// Len returns the number of records stored for topic.
func (b *Bridge) Len(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Committed returns the committed offset of group on topic.
func (b *Bridge) Committed(group, topic string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed[group][topic]
}

// Consumers returns the number of live consumer instances.
func (b *Bridge) Consumers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.consumers)
}

func (b *Bridge) produce(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")

	var req bridge.ProduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	b.mu.Lock()
	resp := bridge.ProduceResponse{Offsets: make([]bridge.OffsetResult, 0, len(req.Records))}
	for _, rec := range req.Records {
		b.produced++
		if b.reject() {
			resp.Offsets = append(resp.Offsets, bridge.OffsetResult{ErrorCode: http.StatusInternalServerError, Message: "record rejected"})
			continue
		}
		b.topics[topic] = append(b.topics[topic], record{key: rec.Key, value: rec.Value, headers: rec.Headers})
		resp.Offsets = append(resp.Offsets, bridge.OffsetResult{Partition: 0, Offset: int64(len(b.topics[topic]) - 1)})
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, bridge.ContentTypeV2, resp)
}

// reject must be called with mu held.
func (b *Bridge) reject() bool {
	if b.cfg.RejectEvery > 0 && b.produced%b.cfg.RejectEvery == 0 {
		return true
	}
	return b.cfg.ErrorRate > 0 && rand.Float64() < b.cfg.ErrorRate
}

func (b *Bridge) createConsumer(w http.ResponseWriter, r *http.Request) {
	group := r.PathValue("group")

	var req bridge.CreateConsumerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Name == "" {
		req.Name = uuid.NewString()
	}

	b.mu.Lock()
	key := group + "/" + req.Name
	if _, ok := b.consumers[key]; ok {
		b.mu.Unlock()
		writeError(w, http.StatusConflict, "a consumer instance with the specified name already exists")
		return
	}
	b.consumers[key] = &consumer{group: group, fetched: make(map[string]int64)}
	b.mu.Unlock()

	b.log.Debug("consumer created", zap.String("group", group), zap.String("name", req.Name))
	writeJSON(w, http.StatusOK, bridge.ContentTypeV2, bridge.CreateConsumerResponse{
		InstanceID: req.Name,
		BaseURI:    fmt.Sprintf("http://%s/consumers/%s/instances/%s", r.Host, group, req.Name),
	})
}

func (b *Bridge) lookup(w http.ResponseWriter, r *http.Request) *consumer {
	c, ok := b.consumers[r.PathValue("group")+"/"+r.PathValue("name")]
	if !ok {
		writeError(w, http.StatusNotFound, "the specified consumer instance was not found")
		return nil
	}
	return c
}

func (b *Bridge) subscribe(w http.ResponseWriter, r *http.Request) {
	var req bridge.SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Topics) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "topics are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.lookup(w, r)
	if c == nil {
		return
	}
	c.topics = req.Topics
	for _, t := range req.Topics {
		c.fetched[t] = b.committed[c.group][t]
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bridge) records(w http.ResponseWriter, r *http.Request) {
	timeout := 0 * time.Millisecond
	if v := r.URL.Query().Get("timeout"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeout")
			return
		}
		timeout = time.Duration(ms) * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	for {
		out, ok := b.fetch(w, r)
		if !ok {
			return
		}
		if len(out) > 0 || !time.Now().Before(deadline) {
			writeJSON(w, http.StatusOK, bridge.ContentTypeJSON, out)
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (b *Bridge) fetch(w http.ResponseWriter, r *http.Request) ([]bridge.ConsumerRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.lookup(w, r)
	if c == nil {
		return nil, false
	}

	out := []bridge.ConsumerRecord{}
	for _, t := range c.topics {
		log := b.topics[t]
		for off := c.fetched[t]; off < int64(len(log)); off++ {
			rec := log[off]
			out = append(out, bridge.ConsumerRecord{
				Topic: t, Key: rec.key, Value: rec.value, Partition: 0, Offset: off, Headers: rec.headers,
			})
		}
		c.fetched[t] = int64(len(log))
	}
	return out, true
}

func (b *Bridge) commit(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.lookup(w, r)
	if c == nil {
		return
	}
	if b.committed[c.group] == nil {
		b.committed[c.group] = make(map[string]int64)
	}
	for t, off := range c.fetched {
		b.committed[c.group][t] = off
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Bridge) deleteConsumer(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c := b.lookup(w, r); c == nil {
		return
	}
	delete(b.consumers, r.PathValue("group")+"/"+r.PathValue("name"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, bridge.ContentTypeV2, bridge.ErrorResponse{ErrorCode: status, Message: msg})
}

// Start serves a Bridge on cfg.Port in the background.
func Start(cfg ServerConfig, log *zap.Logger) (*http.Server, *Bridge) {
	if log == nil {
		log = zap.NewNop()
	}
	b := NewBridge(cfg, log)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("dummy bridge listening", zap.String("addr", addr))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("dummy bridge failed", zap.Error(err))
		}
	}()
	return server, b
}
