package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/align"
	"github.com/quantfold/probedge/internal/circuitbreaker"
	"github.com/quantfold/probedge/internal/forecast"
	"github.com/quantfold/probedge/internal/sim"
	"github.com/quantfold/probedge/internal/timeline"
	"github.com/quantfold/probedge/pkg/cache"
	"github.com/quantfold/probedge/pkg/config"
	"github.com/quantfold/probedge/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var simulateCmd = &cobra.Command{
	Use:   "simulate <event-id>",
	Short: "Replay one event through a single threshold pair",
	Long: `Builds the aligned timeline for one event and replays the trading
state machine against a single (entry, exit) threshold pair, printing
every trade it produces. This is the fastest way to understand why the
grid search likes or dislikes a combination.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().Float64P("entry", "e", 0.05, "Entry threshold (divergence that opens a position)")
	simulateCmd.Flags().Float64P("exit", "x", 0.01, "Exit threshold (divergence that closes it)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eventID := args[0]

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
	entry, _ := cmd.Flags().GetFloat64("entry")
	exit, _ := cmd.Flags().GetFloat64("exit")
	if entry <= 0 {
		return fmt.Errorf("entry threshold must be > 0, got %g", entry)
	}
	if exit >= entry {
		return fmt.Errorf("exit threshold %.3f must sit strictly below entry %.3f", exit, entry)
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	forecaster, err := buildForecaster(cfg, logger)
	if err != nil {
		return fmt.Errorf("build forecast provider: %w", err)
	}

	aligner := align.New(align.Config{
		ExcludeFirstSeconds: cfg.Sim.ExcludeFirstSeconds,
		ExcludeLastSeconds:  cfg.Sim.ExcludeLastSeconds,
		Logger:              logger,
	})
	builder := timeline.New(timeline.Config{
		Source:   src,
		Aligner:  aligner,
		Forecast: forecaster,
		Logger:   logger,
	})

	tl, err := builder.Timeline(ctx, eventID)
	if err != nil {
		return fmt.Errorf("build timeline for %s: %w", eventID, err)
	}

	fmt.Printf("Event %s: %d aligned points, outcome %s\n",
		tl.EventID, len(tl.Points), tl.RealizedOutcome)
	if tl.Empty() {
		fmt.Println("No usable points after alignment; nothing to simulate.")
		return nil
	}

	simulator := sim.New(sim.Config{
		MinHoldSeconds:      cfg.Sim.MinHoldSeconds,
		FallbackExitPenalty: cfg.Sim.FallbackExitPenalty,
		ForcedExitPenalty:   cfg.Sim.ForcedExitPenalty,
		Costs: sim.CostConfig{
			BetAmount:    cfg.Costs.BetAmount,
			EnableFees:   cfg.Costs.EnableFees,
			FeeRate:      cfg.Costs.FeeRate,
			SlippageRate: cfg.Costs.SlippageRate,
		},
		Logger: logger,
	})
	result := simulator.Run(tl, entry, exit)

	fmt.Printf("Thresholds: entry %.3f, exit %.3f\n\n", entry, exit)

	if result.TradeCount == 0 {
		fmt.Println("No trades fired.")
		printEntrySkips(result)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "#\tSIDE\tPHASE\tENTRY T\tEXIT T\tHOLD\tENTRY PX\tEXIT PX\tEXIT VIA\tCONTRACTS\tNET\n")
	fmt.Fprintf(w, "-\t----\t-----\t-------\t------\t----\t--------\t-------\t--------\t---------\t---\n")
	for i := range result.Trades {
		trade := &result.Trades[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%ds\t%.3f\t%.3f\t%s\t%.2f\t%s\n",
			i+1, trade.Side, trade.GamePhase,
			trade.EntryTime, trade.ExitTime, trade.HoldSeconds(),
			trade.EntryPrice, trade.ExitPrice, exitKind(trade),
			trade.Contracts, signedUSD(trade.NetProfit))
	}
	w.Flush()

	fmt.Printf("\nTrades: %d (%d won, %.0f%% win rate)\n",
		result.TradeCount, result.WinCount, 100*result.WinRate())
	fmt.Printf("P&L: gross %s, fees %s, slippage %s, net %s\n",
		signedUSD(result.GrossProfit), signedUSD(-result.TotalFees),
		signedUSD(-result.TotalSlippage), signedUSD(result.NetProfit))
	printEntrySkips(result)

	return nil
}

func printEntrySkips(result sim.Result) {
	if result.SkippedMissingQuote > 0 {
		fmt.Printf("Entry signals skipped for a missing quote: %d\n", result.SkippedMissingQuote)
	}
	if result.SkippedSizingGuard > 0 {
		fmt.Printf("Entry signals skipped by the sizing guard: %d\n", result.SkippedSizingGuard)
	}
}

// exitKind labels how a trade's exit leg executed: against a real
// quote, or against a penalty-shaded mid.
func exitKind(trade *types.Trade) string {
	if trade.ExitUsedPenalty {
		return "penalty"
	}
	return "quote"
}

// signedUSD renders a profit-and-loss figure with an explicit sign, so
// flat results read as +0.00 rather than blending into the wins.
func signedUSD(v float64) string {
	return fmt.Sprintf("%+.2f", v)
}

// buildForecaster duplicates the application's forecast wiring without
// the shared timeline cache; a one-event replay has nothing to reuse.
func buildForecaster(cfg *config.Config, logger *zap.Logger) (forecast.Provider, error) {
	switch cfg.Forecast.Mode {
	case "calibrated":
		modelCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
			NumCounters: cfg.Cache.ModelMaxItems * 10,
			MaxCost:     cfg.Cache.ModelMaxItems,
			BufferItems: 64,
			Logger:      logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create model cache: %w", err)
		}
		return forecast.NewCalibratedProvider(cfg.Forecast.ModelPath, forecast.NewModelCache(modelCache, logger))
	case "http":
		breaker, err := circuitbreaker.New(&circuitbreaker.Config{
			Name:             "model-server",
			FailureThreshold: circuitbreaker.DefaultFailureThreshold,
			Cooldown:         circuitbreaker.DefaultCooldown,
			Logger:           logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create model-server breaker: %w", err)
		}
		return forecast.NewHTTPProvider(forecast.HTTPProviderConfig{
			URL:           cfg.Forecast.URL,
			RatePerSecond: cfg.Forecast.RatePerSecond,
			Burst:         cfg.Forecast.Burst,
			Breaker:       breaker,
			Logger:        logger,
		}), nil
	default:
		return forecast.NewRawProvider(), nil
	}
}
