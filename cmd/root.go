package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "probedge",
	Short: "Divergence backtester for prediction markets",
	Long: `Probedge replays historical event snapshots and backtests a
divergence strategy: enter when the model forecast disagrees with the
market mid by more than an entry threshold, exit once the disagreement
collapses back below an exit threshold.

A grid of (entry, exit) threshold pairs is evaluated over disjoint
train, validation, and test event splits. The winner is picked by
validation profit among the top train combinations, and the test split
is reported untouched as the honest out-of-sample estimate.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (environment overrides still apply)")
}
