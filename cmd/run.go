package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"testclients/internal/cli"
	"testclients/internal/config"
	"testclients/internal/logger"
	"testclients/internal/payload"
	"testclients/internal/storage"
	"testclients/internal/transport/bridge"
	"testclients/internal/transport/kafka"
	"testclients/internal/tui"
	"testclients/internal/workload"
)

var producerCmd = &cobra.Command{
	Use:   "producer",
	Short: "Send a fixed number of messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runClient(cmd.Context(), viper.GetViper(), config.ClientProducer, config.Protocol(viper.GetString(config.KeyProtocol)), uiOptions(cmd))
		return err
	},
}

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Receive and commit a fixed number of messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := runClient(cmd.Context(), viper.GetViper(), config.ClientConsumer, config.Protocol(viper.GetString(config.KeyProtocol)), uiOptions(cmd))
		return err
	},
}

// runClient executes one run and returns an error unless every unit
// succeeded.
func runClient(ctx context.Context, v *viper.Viper, clientType string, protocol config.Protocol, ui uiOpts) (workload.Report, error) {
	s, err := config.Load(v, clientType, protocol)
	if err != nil {
		return workload.Report{}, err
	}

	logCfg := s.Log
	logCfg.Quiet = ui.tui
	log, err := logger.New(logCfg)
	if err != nil {
		return workload.Report{}, err
	}
	defer log.Sync()
	log = log.Named(s.ClientType).With(zap.String("protocol", string(s.Protocol)))

	binding, endpoint, err := newBinding(s, log)
	if err != nil {
		return workload.Report{}, err
	}

	opts := []workload.Option{workload.WithLogger(log)}
	if s.ClientType == config.ClientProducer {
		src, err := payload.NewSource(payload.NewEngine(), s.Message, s.MessageKey, s.Headers)
		if err != nil {
			binding.Close()
			return workload.Report{}, &workload.ConfigurationError{Field: "message", Reason: err.Error()}
		}
		opts = append(opts, workload.WithMessageSource(src))
	}
	driver := workload.NewDriver(s.Workload(), binding, opts...)

	var out io.Writer = os.Stdout
	if !ui.tui {
		cli.PrintHeader(out, cli.Header{
			Role:      s.ClientType,
			Protocol:  string(s.Protocol),
			Endpoint:  endpoint,
			Topic:     s.Topic,
			Target:    s.MessageCount,
			Pace:      s.Delay,
			GroupSize: s.MessagesPerTransaction,
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopUI := watch(runCtx, cancel, driver, s, ui, out, log)

	rep, err := driver.Run(runCtx)
	stopUI()

	cli.PrintSummary(out, rep)
	record(s, rep, log)
	return rep, err
}

// watch starts the requested progress display and returns a function that
// stops it and waits for it to exit.
func watch(ctx context.Context, abort context.CancelFunc, d *workload.Driver, s config.Settings, ui uiOpts, out io.Writer, log *zap.Logger) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	switch {
	case ui.tui:
		go func() {
			defer close(exited)
			err := tui.Show(tui.Run{
				Title:    fmt.Sprintf("🚀 %s over %s", strings.ToUpper(s.ClientType), s.Protocol),
				Topic:    s.Topic,
				Target:   s.MessageCount,
				Progress: d.Progress,
				Done:     done,
				Abort:    abort,
			})
			if err != nil {
				log.Error("live view failed", zap.Error(err))
			}
		}()
	case ui.progress:
		monCtx, stop := context.WithCancel(ctx)
		go func() {
			defer close(exited)
			cli.Monitor(monCtx, out, d.Progress, s.MessageCount, 200*time.Millisecond)
		}()
		go func() {
			<-done
			stop()
		}()
	default:
		close(exited)
	}

	return func() {
		close(done)
		<-exited
	}
}

func newBinding(s config.Settings, log *zap.Logger) (workload.Binding, string, error) {
	switch s.Protocol {
	case config.ProtocolKafka:
		cfg := s.Kafka()
		endpoint := strings.Join(cfg.Brokers, ",")
		if s.ClientType == config.ClientProducer {
			p, err := kafka.NewProducer(cfg, log)
			return p, endpoint, err
		}
		c, err := kafka.NewConsumer(cfg, log)
		return c, endpoint, err
	case config.ProtocolHTTP:
		cfg := s.Bridge()
		if s.ClientType == config.ClientProducer {
			p, err := bridge.NewProducer(cfg, log)
			return p, cfg.BaseURL, err
		}
		c, err := bridge.NewConsumer(cfg, log)
		return c, cfg.BaseURL, err
	}
	return nil, "", &workload.ConfigurationError{Field: "protocol", Reason: fmt.Sprintf("unknown protocol %q", s.Protocol)}
}

func record(s config.Settings, rep workload.Report, log *zap.Logger) {
	if s.HistoryPath == "" {
		return
	}
	store, err := storage.Open(s.HistoryPath)
	if err != nil {
		log.Warn("history unavailable", zap.Error(err))
		return
	}
	defer store.Close()

	if err := store.Save(storage.NewRunRecord(rep, s.Workload(), string(s.Protocol))); err != nil {
		log.Warn("saving run history", zap.Error(err))
	}
}
