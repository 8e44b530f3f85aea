package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"testclients/internal/cli"
	"testclients/internal/config"
	"testclients/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString(config.KeyHistoryPath)
		if path == "" {
			return fmt.Errorf("no history file, set --history or HISTORY_PATH")
		}
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.List(limit)
		if err != nil {
			return err
		}

		switch format {
		case "table":
			cli.PrintHistory(os.Stdout, runs)
			return nil
		case "json":
			return cli.ExportJSON(os.Stdout, runs)
		case "csv":
			return cli.ExportCSV(os.Stdout, runs)
		}
		return fmt.Errorf("unknown format %q", format)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Number of runs to show, newest first (0 for all)")
	historyCmd.Flags().String("format", "table", "table, json or csv")
}
