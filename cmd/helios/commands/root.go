package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	policyFile string
	verbose    bool
)

// rootCmd is the base command when called without subcommands
var rootCmd = &cobra.Command{
	Use:   "helios",
	Short: "Helios - policy-driven portfolio engine",
	Long: `Helios scores a stock universe with weighted agent blends, filters it
against an investor policy, constructs capped portfolios and runs
walk-forward backtests.

Usage:
  go run ./cmd/helios [command]

Examples:
  go run ./cmd/helios recommend
  go run ./cmd/helios backtest run --from 2023-01-01 --to 2023-12-31
  go run ./cmd/helios api
  go run ./cmd/helios policy check`,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "policy file (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
