package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Content types of the bridge REST API, embedded JSON format.
const (
	ContentTypeJSON = "application/vnd.kafka.json.v2+json"
	ContentTypeV2   = "application/vnd.kafka.v2+json"
)

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"` // base64
}

type ProducerRecord struct {
	Key       json.RawMessage `json:"key,omitempty"`
	Value     json.RawMessage `json:"value"`
	Partition *int32          `json:"partition,omitempty"`
	Headers   []Header        `json:"headers,omitempty"`
}

type ProduceRequest struct {
	Records []ProducerRecord `json:"records"`
}

type OffsetResult struct {
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
	ErrorCode int    `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ProduceResponse struct {
	Offsets []OffsetResult `json:"offsets"`
}

type CreateConsumerRequest struct {
	Name             string `json:"name"`
	Format           string `json:"format"`
	AutoOffsetReset  string `json:"auto.offset.reset"`
	EnableAutoCommit bool   `json:"enable.auto.commit"`
}

type CreateConsumerResponse struct {
	InstanceID string `json:"instance_id"`
	BaseURI    string `json:"base_uri"`
}

type SubscriptionRequest struct {
	Topics []string `json:"topics"`
}

type ConsumerRecord struct {
	Topic     string          `json:"topic"`
	Key       json.RawMessage `json:"key,omitempty"`
	Value     json.RawMessage `json:"value"`
	Partition int32           `json:"partition"`
	Offset    int64           `json:"offset"`
	Headers   []Header        `json:"headers,omitempty"`
}

type ErrorResponse struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
}

// EncodeString wraps s as a JSON string for the embedded json format.
func EncodeString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// DecodeValue returns the payload bytes of a record field: JSON strings are
// unquoted, anything else is returned as raw JSON.
func DecodeValue(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}

func EncodeHeaders(h map[string]string) []Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]Header, 0, len(h))
	for k, v := range h {
		out = append(out, Header{Key: k, Value: base64.StdEncoding.EncodeToString([]byte(v))})
	}
	return out
}

// StatusError is a bridge response with an unexpected status code.
type StatusError struct {
	Status int
	Body   ErrorResponse
}

func (e *StatusError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("bridge returned %d: %s", e.Status, e.Body.Message)
	}
	return fmt.Sprintf("bridge returned %d", e.Status)
}
