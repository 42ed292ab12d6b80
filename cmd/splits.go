package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/internal/source"
	"github.com/quantfold/probedge/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var splitsCmd = &cobra.Command{
	Use:   "splits",
	Short: "Print the train/validation/test event assignment",
	Long: `Lists the events in the snapshot source and shows which split each
one lands in under the configured ratios and seed. The assignment is
deterministic: the same events, seed, and ratios always produce the
same table.`,
	RunE: runSplits,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(splitsCmd)
	splitsCmd.Flags().BoolP("verbose", "v", false, "List every event id, not just the counts")
}

func runSplits(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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
	verbose, _ := cmd.Flags().GetBool("verbose")

	src, err := openSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	ids, err := src.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No events found in the snapshot source.")
		return nil
	}

	assignment, err := grid.Assign(ids, cfg.Split.Seed, grid.Ratios{
		Train:      cfg.Split.TrainRatio,
		Validation: cfg.Split.ValidationRatio,
		Test:       cfg.Split.TestRatio,
	})
	if err != nil {
		return fmt.Errorf("assign splits: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SPLIT\tEVENTS\tSHARE\n")
	fmt.Fprintf(w, "-----\t------\t-----\n")
	for _, split := range grid.AllSplits {
		events := assignment.Events(split)
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\n", split, len(events),
			100*float64(len(events))/float64(assignment.Total()))
	}
	w.Flush()

	if verbose {
		for _, split := range grid.AllSplits {
			fmt.Printf("\n%s:\n", split)
			for _, id := range assignment.Events(split) {
				fmt.Printf("  %s\n", id)
			}
		}
	}

	fmt.Printf("\nTotal: %d events (seed %d)\n", assignment.Total(), cfg.Split.Seed)

	return nil
}

// openSource builds the snapshot source named by the config. Shared by
// the inspection commands; the full pipeline wiring lives in
// internal/app.
func openSource(cfg *config.Config, logger *zap.Logger) (source.Source, error) {
	switch cfg.Source.Kind {
	case "sqlite":
		return source.NewSQLiteSource(cfg.Source.Path, logger)
	case "jsonl":
		return source.NewJSONLSource(cfg.Source.Path, logger)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}
