package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"testclients/internal/config"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Run a producer and a consumer against the same topic at once",
	Long: `Runs a producer and a consumer concurrently, each with its own
connection. The first failure cancels the other run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		protocol := config.Protocol(viper.GetString(config.KeyProtocol))
		g, ctx := errgroup.WithContext(cmd.Context())
		for _, clientType := range []string{config.ClientConsumer, config.ClientProducer} {
			g.Go(func() error {
				_, err := runClient(ctx, viper.GetViper(), clientType, protocol, uiOpts{})
				return err
			})
		}
		return g.Wait()
	},
}
