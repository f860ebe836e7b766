// Command econsim runs the production-and-exchange market simulation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "econsim",
		Short: "Agent-based production and market-clearing simulator",
		Long: `econsim simulates a population of specialized producers (farmers,
woodcutters, miners, refiners, blacksmiths) trading through a market that
clears once per day, and reports prices, wealth and inequality over time.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a scenario YAML file")

	rootCmd.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "econsim version %s\n", version)
		},
	}
}
