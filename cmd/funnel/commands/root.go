package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "funnel",
	Short: "A-share Wyckoff screening funnel",
	Long: `Four-layer screening funnel for the A-share market.

Narrows the full listing down to a handful of accumulation candidates:
static filters, trend and relative strength, sector rotation, and
Wyckoff pattern detection (spring, LPS, effort-vs-result).

Usage:
  go run ./cmd/funnel [command]

Examples:
  go run ./cmd/funnel screen
  go run ./cmd/funnel screen --date 2026-08-28
  go run ./cmd/funnel universe
  go run ./cmd/funnel serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy YAML file (default from FUNNEL_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
