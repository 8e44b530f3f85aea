package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"testclients/internal/banner"
	"testclients/internal/config"
	"testclients/internal/workload"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "testclients",
	Short: "testclients - bounded produce/consume workloads",
	Long: `
testclients drives a fixed number of messages through a Kafka-compatible
platform, either over the native protocol or through the HTTP bridge, and
exits 0 only when every message was acknowledged.

Without a subcommand the client type is taken from CLIENT_TYPE and the
protocol from PROTOCOL, which is how it runs inside a container.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		clientType := viper.GetString(config.KeyClientType)
		if clientType == "" {
			return cmd.Help()
		}
		_, err := runClient(cmd.Context(), viper.GetViper(), clientType, config.Protocol(viper.GetString(config.KeyProtocol)), uiOptions(cmd))
		return err
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(producerCmd, consumerCmd, pairCmd, bridgeCmd, historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.testclients.yaml)")

	pf.String("bootstrap-servers", "", "Comma separated broker addresses (native protocol)")
	pf.String("hostname", "", "HTTP bridge host")
	pf.Int("port", 8080, "HTTP bridge port")
	pf.StringP("protocol", "P", "kafka", "Transport: kafka or http")
	pf.StringP("topic", "t", "", "Topic to produce to or consume from")
	pf.IntP("count", "n", 10, "Number of messages")
	pf.Int("delay-ms", 0, "Delay between messages in ms (0 sends everything at once)")
	pf.Int("tx-size", 0, "Messages per transaction (native producer only)")
	pf.String("group-id", "", "Consumer group")
	pf.String("client-id", "", "Client id (bridge consumer instance name over HTTP)")
	pf.StringP("message", "m", "", "Message template (default \"Hello world - {{.Index}}\")")
	pf.StringP("key", "k", "", "Message key template")
	pf.String("headers", "", "Record headers, e.g. \"k1=v1, k2=v2\"")
	pf.String("acks", "all", "Producer acks: all, leader or none")
	pf.Int("poll-timeout-ms", 1000, "Consumer poll timeout in ms")
	pf.Int("grace-ms", int(workload.DefaultCompletionGrace.Milliseconds()), "Grace added to the run timeout in ms")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", "console", "console or json")
	pf.String("log-file", "", "Also write JSON logs to this rotating file")
	pf.String("history", "", "bbolt file to record run summaries in")
	pf.Bool("progress", false, "Print a progress line while running")
	pf.Bool("tui", false, "Show a live dashboard while running")

	bindFlags(pf, map[string]string{
		"bootstrap-servers": config.KeyBootstrapServers,
		"hostname":          config.KeyHostname,
		"port":              config.KeyPort,
		"protocol":          config.KeyProtocol,
		"topic":             config.KeyTopic,
		"count":             config.KeyMessageCount,
		"delay-ms":          config.KeyDelayMs,
		"tx-size":           config.KeyMessagesPerTransaction,
		"group-id":          config.KeyGroupID,
		"client-id":         config.KeyClientID,
		"message":           config.KeyMessage,
		"key":               config.KeyMessageKey,
		"headers":           config.KeyHeaders,
		"acks":              config.KeyAcks,
		"poll-timeout-ms":   config.KeyPollTimeoutMs,
		"grace-ms":          config.KeyCompletionGraceMs,
		"log-level":         config.KeyLogLevel,
		"log-format":        config.KeyLogFormat,
		"log-file":          config.KeyLogFile,
		"history":           config.KeyHistoryPath,
	})
}

func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".testclients")
		}
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
		}
	}
}

type uiOpts struct {
	progress bool
	tui      bool
}

func uiOptions(cmd *cobra.Command) uiOpts {
	progress, _ := cmd.Flags().GetBool("progress")
	tui, _ := cmd.Flags().GetBool("tui")
	return uiOpts{progress: progress, tui: tui}
}
