package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testclients/internal/workload"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BOOTSTRAP_SERVERS", "broker-0:9092, broker-1:9092")
	t.Setenv("TOPIC", "orders")
	t.Setenv("MESSAGE_COUNT", "100")
	t.Setenv("DELAY_MS", "250")
	t.Setenv("MESSAGES_PER_TRANSACTION", "10")
	t.Setenv("HEADERS", "trace=abc, env = dev")

	s, err := Load(newViper(), "producer", ProtocolKafka)
	require.NoError(t, err)

	assert.Equal(t, []string{"broker-0:9092", "broker-1:9092"}, s.BootstrapServers)
	assert.Equal(t, map[string]string{"trace": "abc", "env": "dev"}, s.Headers)

	w := s.Workload()
	assert.Equal(t, workload.Config{
		Topic:                "orders",
		TargetCount:          100,
		PaceInterval:         250 * time.Millisecond,
		TransactionGroupSize: 10,
		PollTimeout:          time.Second,
		CompletionGrace:      workload.DefaultCompletionGrace,
	}, w)

	k := s.Kafka()
	assert.True(t, k.Transactional)
	assert.Equal(t, "all", k.Acks)
}

func TestLoadBridge(t *testing.T) {
	v := newViper()
	v.Set(KeyHostname, "my-bridge")
	v.Set(KeyPort, 8080)
	v.Set(KeyTopic, "orders")
	v.Set(KeyGroupID, "g1")
	v.Set(KeyClientID, "c1")

	s, err := Load(v, "Consumer", ProtocolHTTP)
	require.NoError(t, err)
	assert.Equal(t, ClientConsumer, s.ClientType)

	b := s.Bridge()
	assert.Equal(t, "http://my-bridge:8080", b.BaseURL)
	assert.Equal(t, "g1", b.GroupID)
	assert.Equal(t, "c1", b.ConsumerName)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name       string
		set        map[string]any
		clientType string
		protocol   Protocol
		field      string
	}{
		{"streams", map[string]any{KeyBootstrapServers: "b:9092", KeyTopic: "t"}, "streams", ProtocolKafka, "clientType"},
		{"unknown client", map[string]any{KeyBootstrapServers: "b:9092", KeyTopic: "t"}, "admin", ProtocolKafka, "clientType"},
		{"no brokers", map[string]any{KeyTopic: "t"}, "producer", ProtocolKafka, "bootstrapServers"},
		{"no host", map[string]any{KeyTopic: "t"}, "producer", ProtocolHTTP, "hostname"},
		{"bad port", map[string]any{KeyHostname: "h", KeyPort: 70000, KeyTopic: "t"}, "producer", ProtocolHTTP, "port"},
		{"bridge transactions", map[string]any{KeyHostname: "h", KeyTopic: "t", KeyMessagesPerTransaction: 5}, "producer", ProtocolHTTP, "transactionGroupSize"},
		{"consumer without group", map[string]any{KeyBootstrapServers: "b:9092", KeyTopic: "t"}, "consumer", ProtocolKafka, "groupId"},
		{"no topic", map[string]any{KeyBootstrapServers: "b:9092"}, "producer", ProtocolKafka, "topic"},
		{"zero count", map[string]any{KeyBootstrapServers: "b:9092", KeyTopic: "t", KeyMessageCount: 0}, "producer", ProtocolKafka, "targetCount"},
		{"negative delay", map[string]any{KeyBootstrapServers: "b:9092", KeyTopic: "t", KeyDelayMs: -1}, "producer", ProtocolKafka, "paceInterval"},
		{"bad headers", map[string]any{KeyBootstrapServers: "b:9092", KeyTopic: "t", KeyHeaders: "novalue"}, "producer", ProtocolKafka, "headers"},
		{"bad protocol", map[string]any{KeyTopic: "t"}, "producer", Protocol("amqp"), "protocol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}

			_, err := Load(v, tt.clientType, tt.protocol)
			var ce *workload.ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := ParseHeaders("")
	require.NoError(t, err)
	assert.Nil(t, h)

	h, err = ParseHeaders("a=1,b=x=y, ,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, h)

	_, err = ParseHeaders("=v")
	assert.Error(t, err)
}

func TestLoadNormalizesProtocol(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyHostname, "my-bridge")
	v.Set(KeyTopic, "orders")

	s, err := Load(v, " PRODUCER ", Protocol(" HTTP "))
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTP, s.Protocol)
	assert.Equal(t, ClientProducer, s.ClientType)
}
