package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"testclients/internal/config"
	"testclients/internal/dummy"
	"testclients/internal/logger"
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run an in-memory HTTP bridge for local runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("listen")
		latency, _ := cmd.Flags().GetDuration("max-latency")
		errorRate, _ := cmd.Flags().GetFloat64("error-rate")
		rejectEvery, _ := cmd.Flags().GetInt("reject-every")

		log, err := logger.New(logger.Config{
			Level:  viper.GetString(config.KeyLogLevel),
			Format: viper.GetString(config.KeyLogFormat),
			File:   viper.GetString(config.KeyLogFile),
		})
		if err != nil {
			return err
		}
		defer log.Sync()

		server, _ := dummy.Start(dummy.ServerConfig{
			Port:        port,
			MaxLatency:  latency,
			ErrorRate:   errorRate,
			RejectEvery: rejectEvery,
		}, log)

		<-cmd.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("bridge shutdown", zap.Error(err))
		}
		return nil
	},
}

func init() {
	bridgeCmd.Flags().IntP("listen", "l", 8080, "Port to listen on")
	bridgeCmd.Flags().Duration("max-latency", 0, "Random per-request latency up to this value")
	bridgeCmd.Flags().Float64("error-rate", 0, "Share (0-1) of produced records to reject")
	bridgeCmd.Flags().Int("reject-every", 0, "Reject every Nth produced record")
}
