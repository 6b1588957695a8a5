package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "hammer-tracker",
		Short: "Raid leaderboard tracker",
		Long: `hammer-tracker stores raid leaderboard posts as a time series and
reports each raider's current and week-average rate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: hammer-tracker.yaml in ., ./config, /etc/hammer-tracker)")

	rootCmd.AddCommand(
		serveCmd(&configPath),
		ingestCmd(&configPath),
		migrateCmd(&configPath),
		historyCmd(&configPath),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hammer-tracker %s\n", version)
		},
	}
}
