package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfold/probedge/internal/app"
	"github.com/quantfold/probedge/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full threshold grid search",
	Long: `Runs the divergence grid search end to end:
1. List events from the snapshot source
2. Align each event into a forecast-vs-market timeline
3. Simulate every (entry, exit) threshold pair on every split
4. Pick the winner by validation profit among the top train pairs
5. Persist the run report (console or Postgres)

Use --single-event to debug one event's timeline in isolation.`,
	RunE: runSearch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("single-event", "e", "", "Evaluate only a single event by id (for debugging)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	// Load config
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Get flags
	singleEvent, _ := cmd.Flags().GetString("single-event")

	// Create app with options
	opts := &app.Options{
		SingleEvent: singleEvent,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
