package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the threshold grid a config produces",
	Long: `Enumerates the (entry, exit) threshold pairs the configured grid
bounds produce, without running anything. Useful to sanity-check the
search space before committing to a long run.`,
	RunE: runGrid,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(gridCmd)
}

func runGrid(cmd *cobra.Command, args []string) error {
	// Load config
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	combos := grid.Generate(grid.Config{
		EntryMin:  cfg.Grid.EntryMin,
		EntryMax:  cfg.Grid.EntryMax,
		EntryStep: cfg.Grid.EntryStep,
		ExitMin:   cfg.Grid.ExitMin,
		ExitMax:   cfg.Grid.ExitMax,
		ExitStep:  cfg.Grid.ExitStep,
	})

	if len(combos) == 0 {
		fmt.Println("Grid bounds produce no combinations (every exit must sit strictly below its entry).")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tENTRY\tEXIT\n")
	fmt.Fprintf(w, "-\t-----\t----\n")
	for i, combo := range combos {
		fmt.Fprintf(w, "%d\t%.3f\t%.3f\n", i+1, combo.Entry, combo.Exit)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d combinations (entry %.3f..%.3f step %.3f, exit %.3f..%.3f step %.3f)\n",
		len(combos),
		cfg.Grid.EntryMin, cfg.Grid.EntryMax, cfg.Grid.EntryStep,
		cfg.Grid.ExitMin, cfg.Grid.ExitMax, cfg.Grid.ExitStep)

	return nil
}
