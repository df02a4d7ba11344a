package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "starpupil",
	Short: "StarPupil - stock signal generation pipeline",
	Long: `StarPupil Unified CLI

Daily signal generation: market data and news in, technical indicators
and sentiment through configured strategies, deduplicated signals out.

Examples:
  go run ./cmd/starpupil pipeline run
  go run ./cmd/starpupil scheduler start
  go run ./cmd/starpupil api
  go run ./cmd/starpupil migrate`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
