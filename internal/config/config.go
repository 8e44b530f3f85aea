// Package config turns flags, environment variables and an optional config
// file into the settings of one run.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"testclients/internal/logger"
	"testclients/internal/transport/bridge"
	"testclients/internal/transport/kafka"
	"testclients/internal/workload"
)

// Keys double as environment variable names once upper-cased.
const (
	KeyBootstrapServers       = "bootstrap_servers"
	KeyTopic                  = "topic"
	KeyMessageCount           = "message_count"
	KeyDelayMs                = "delay_ms"
	KeyMessagesPerTransaction = "messages_per_transaction"
	KeyGroupID                = "group_id"
	KeyClientID               = "client_id"
	KeyMessage                = "message"
	KeyMessageKey             = "message_key"
	KeyHeaders                = "headers"
	KeyAcks                   = "producer_acks"
	KeyHostname               = "hostname"
	KeyPort                   = "port"
	KeyPollTimeoutMs          = "poll_timeout_ms"
	KeyCompletionGraceMs      = "completion_grace_ms"
	KeyClientType             = "client_type"
	KeyProtocol               = "protocol"
	KeyLogLevel               = "log_level"
	KeyLogFormat              = "log_format"
	KeyLogFile                = "log_file"
	KeyHistoryPath            = "history_path"
)

type Protocol string

const (
	ProtocolKafka Protocol = "kafka"
	ProtocolHTTP  Protocol = "http"
)

const (
	ClientProducer = "producer"
	ClientConsumer = "consumer"
	clientStreams  = "streams"
)

// Settings is everything a run needs, after defaults and validation.
type Settings struct {
	ClientType string
	Protocol   Protocol

	BootstrapServers []string
	BridgeHost       string
	BridgePort       int

	Topic                  string
	MessageCount           int
	Delay                  time.Duration
	MessagesPerTransaction int
	PollTimeout            time.Duration
	CompletionGrace        time.Duration

	GroupID    string
	ClientID   string
	Message    string
	MessageKey string
	Headers    map[string]string
	Acks       string

	Log         logger.Config
	HistoryPath string
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyMessageCount, 10)
	v.SetDefault(KeyDelayMs, 0)
	v.SetDefault(KeyMessagesPerTransaction, 0)
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyPollTimeoutMs, 1000)
	v.SetDefault(KeyCompletionGraceMs, workload.DefaultCompletionGrace.Milliseconds())
	v.SetDefault(KeyAcks, "all")
	v.SetDefault(KeyProtocol, string(ProtocolKafka))
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads the settings of a run for clientType over protocol.
func Load(v *viper.Viper, clientType string, protocol Protocol) (Settings, error) {
	s := Settings{
		ClientType:             strings.ToLower(strings.TrimSpace(clientType)),
		Protocol:               Protocol(strings.ToLower(strings.TrimSpace(string(protocol)))),
		BootstrapServers:       splitList(v.GetString(KeyBootstrapServers)),
		BridgeHost:             strings.TrimSpace(v.GetString(KeyHostname)),
		BridgePort:             v.GetInt(KeyPort),
		Topic:                  strings.TrimSpace(v.GetString(KeyTopic)),
		MessageCount:           v.GetInt(KeyMessageCount),
		Delay:                  time.Duration(v.GetInt64(KeyDelayMs)) * time.Millisecond,
		MessagesPerTransaction: v.GetInt(KeyMessagesPerTransaction),
		PollTimeout:            time.Duration(v.GetInt64(KeyPollTimeoutMs)) * time.Millisecond,
		CompletionGrace:        time.Duration(v.GetInt64(KeyCompletionGraceMs)) * time.Millisecond,
		GroupID:                v.GetString(KeyGroupID),
		ClientID:               v.GetString(KeyClientID),
		Message:                v.GetString(KeyMessage),
		MessageKey:             v.GetString(KeyMessageKey),
		Acks:                   v.GetString(KeyAcks),
		Log: logger.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
			File:   v.GetString(KeyLogFile),
		},
		HistoryPath: v.GetString(KeyHistoryPath),
	}

	headers, err := ParseHeaders(v.GetString(KeyHeaders))
	if err != nil {
		return Settings{}, err
	}
	s.Headers = headers

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	switch s.ClientType {
	case ClientProducer, ClientConsumer:
	case clientStreams:
		return &workload.ConfigurationError{Field: "clientType", Reason: "streams clients are not supported"}
	default:
		return &workload.ConfigurationError{Field: "clientType", Reason: fmt.Sprintf("unknown client type %q", s.ClientType)}
	}

	switch s.Protocol {
	case ProtocolKafka:
		if len(s.BootstrapServers) == 0 {
			return &workload.ConfigurationError{Field: "bootstrapServers", Reason: "BOOTSTRAP_SERVERS is required"}
		}
	case ProtocolHTTP:
		if s.BridgeHost == "" {
			return &workload.ConfigurationError{Field: "hostname", Reason: "HOSTNAME is required"}
		}
		if s.BridgePort <= 0 || s.BridgePort > 65535 {
			return &workload.ConfigurationError{Field: "port", Reason: "PORT must be between 1 and 65535"}
		}
		if s.MessagesPerTransaction > 0 {
			return &workload.ConfigurationError{Field: "transactionGroupSize", Reason: "the HTTP bridge has no transactions"}
		}
	default:
		return &workload.ConfigurationError{Field: "protocol", Reason: fmt.Sprintf("unknown protocol %q", s.Protocol)}
	}

	if s.ClientType == ClientConsumer && s.GroupID == "" {
		return &workload.ConfigurationError{Field: "groupId", Reason: "GROUP_ID is required for consumers"}
	}
	return s.Workload().Validate()
}

// Workload returns the immutable run parameters.
func (s Settings) Workload() workload.Config {
	return workload.Config{
		Topic:                s.Topic,
		TargetCount:          s.MessageCount,
		PaceInterval:         s.Delay,
		TransactionGroupSize: s.MessagesPerTransaction,
		PollTimeout:          s.PollTimeout,
		CompletionGrace:      s.CompletionGrace,
	}
}

func (s Settings) Kafka() kafka.Config {
	return kafka.Config{
		Brokers:       s.BootstrapServers,
		Topic:         s.Topic,
		ClientID:      s.ClientID,
		Transactional: s.MessagesPerTransaction > 0,
		Acks:          s.Acks,
		GroupID:       s.GroupID,
	}
}

func (s Settings) Bridge() bridge.Config {
	return bridge.Config{
		BaseURL:      "http://" + net.JoinHostPort(s.BridgeHost, strconv.Itoa(s.BridgePort)),
		Topic:        s.Topic,
		GroupID:      s.GroupID,
		ConsumerName: s.ClientID,
	}
}

// ParseHeaders reads "k1=v1, k2=v2".
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	headers := make(map[string]string)
	for _, h := range strings.Split(raw, ",") {
		if strings.TrimSpace(h) == "" {
			continue
		}
		parts := strings.SplitN(h, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, &workload.ConfigurationError{Field: "headers", Reason: fmt.Sprintf("malformed header %q, want key=value", strings.TrimSpace(h))}
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
