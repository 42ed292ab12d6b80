package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/internal/search"
)

const leaderboardRows = 10

// ConsoleStore implements Store by pretty-printing the run to a
// writer. Nothing is persisted.
type ConsoleStore struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStore creates a console store writing to stdout.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	logger.Info("console-report-store-initialized")
	return &ConsoleStore{out: os.Stdout, logger: logger}
}

// NewConsoleWriter creates a console store writing to w. Used by
// tests.
func NewConsoleWriter(w io.Writer, logger *zap.Logger) *ConsoleStore {
	return &ConsoleStore{out: w, logger: logger}
}

// StoreRun prints the run summary, the winner's split metrics, and a
// train-split leaderboard.
func (c *ConsoleStore) StoreRun(_ context.Context, result *search.RunResult) error {
	elapsed := result.FinishedAt.Sub(result.StartedAt).Round(1e6)

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "================================================================")
	fmt.Fprintf(c.out, " GRID SEARCH RUN %s\n", result.RunID)
	fmt.Fprintf(c.out, " finished: %s  elapsed: %s\n",
		result.FinishedAt.Format("2006-01-02 15:04:05"), elapsed)
	fmt.Fprintf(c.out, " metric rows: %d  event errors: %d\n",
		len(result.Metrics), result.EventErrors)
	fmt.Fprintf(c.out, " events: train %d / validation %d / test %d\n",
		len(result.Assignment.Train), len(result.Assignment.Validation), len(result.Assignment.Test))
	if result.Partial {
		fmt.Fprintln(c.out, " !!! PARTIAL RUN: cancelled before every combination was evaluated")
	}
	fmt.Fprintln(c.out, "================================================================")

	if result.Selection == nil {
		fmt.Fprintln(c.out, " no combination met the minimum trade count; nothing to select")
	} else {
		c.printSelection(result.Selection)
	}
	c.printLeaderboard(result.Metrics)

	RunsStoredTotal.WithLabelValues("console").Inc()
	return nil
}

func (c *ConsoleStore) printSelection(sel *search.Selection) {
	fmt.Fprintf(c.out, "\nWINNER entry=%.3f exit=%.3f (method %s, n=%d)\n",
		sel.Combination.Entry, sel.Combination.Exit, sel.Method, sel.TopN)

	table := tablewriter.NewWriter(c.out)
	table.Header("Split", "Net", "Gross", "Fees", "Slippage", "Trades", "Win%", "PF", "Max DD", "Avg Hold", "Events")
	for _, m := range []search.CombinationMetrics{sel.Train, sel.Validation, sel.Test} {
		table.Append(
			string(m.Split),
			fmt.Sprintf("$%.2f", m.NetProfit),
			fmt.Sprintf("$%.2f", m.GrossProfit),
			fmt.Sprintf("$%.2f", m.TotalFees),
			fmt.Sprintf("$%.2f", m.TotalSlippage),
			fmt.Sprintf("%d", m.TradeCount),
			fmt.Sprintf("%.1f", 100*m.WinRate),
			fmt.Sprintf("%.2f", m.ProfitFactor),
			fmt.Sprintf("$%.2f", m.MaxDrawdown),
			fmt.Sprintf("%.0fs", m.AvgHoldSeconds),
			fmt.Sprintf("%d", m.EventsProcessed),
		)
	}
	table.Render()
}

// printLeaderboard lists the best train-split combinations by net
// profit, valid ones first.
func (c *ConsoleStore) printLeaderboard(metrics []search.CombinationMetrics) {
	var rows []search.CombinationMetrics
	for _, m := range metrics {
		if m.Split == grid.SplitTrain {
			rows = append(rows, m)
		}
	}
	if len(rows) == 0 {
		return
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].IsValid != rows[j].IsValid {
			return rows[i].IsValid
		}
		if rows[i].NetProfit != rows[j].NetProfit {
			return rows[i].NetProfit > rows[j].NetProfit
		}
		if rows[i].Combination.Entry != rows[j].Combination.Entry {
			return rows[i].Combination.Entry < rows[j].Combination.Entry
		}
		return rows[i].Combination.Exit < rows[j].Combination.Exit
	})
	if len(rows) > leaderboardRows {
		rows = rows[:leaderboardRows]
	}

	fmt.Fprintf(c.out, "\nTRAIN LEADERBOARD (top %d by net profit)\n", len(rows))
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Entry", "Exit", "Net", "Trades", "Win%", "PF", "Max DD", "Valid")
	for i, m := range rows {
		valid := "yes"
		if !m.IsValid {
			valid = "no"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.3f", m.Combination.Entry),
			fmt.Sprintf("%.3f", m.Combination.Exit),
			fmt.Sprintf("$%.2f", m.NetProfit),
			fmt.Sprintf("%d", m.TradeCount),
			fmt.Sprintf("%.1f", 100*m.WinRate),
			fmt.Sprintf("%.2f", m.ProfitFactor),
			fmt.Sprintf("$%.2f", m.MaxDrawdown),
			valid,
		)
	}
	table.Render()
}

// Close is a no-op for console output.
func (c *ConsoleStore) Close() error {
	c.logger.Info("closing-console-report-store")
	return nil
}
