package sim

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/types"
)

func newTestSimulator(cfg Config) *Simulator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Costs.BetAmount == 0 {
		cfg.Costs.BetAmount = 20
	}
	if cfg.FallbackExitPenalty == 0 {
		cfg.FallbackExitPenalty = 0.01
	}
	if cfg.ForcedExitPenalty == 0 {
		cfg.ForcedExitPenalty = 0.03
	}
	return New(cfg)
}

// quoted builds a point carrying a full bid/ask pair.
func quoted(ts int64, forecast, mid, bid, ask float64) types.AlignedPoint {
	return types.AlignedPoint{
		Timestamp:    ts,
		ForecastProb: forecast,
		MarketMid:    mid,
		MarketBid:    types.Float64(bid),
		MarketAsk:    types.Float64(ask),
	}
}

// bare builds a point with no bid/ask.
func bare(ts int64, forecast, mid float64) types.AlignedPoint {
	return types.AlignedPoint{
		Timestamp:    ts,
		ForecastProb: forecast,
		MarketMid:    mid,
	}
}

func timelineOf(points ...types.AlignedPoint) *types.EventTimeline {
	return &types.EventTimeline{EventID: "evt-test", Points: points}
}

func TestRun_LiteralThreeTickScenario(t *testing.T) {
	// Divergence path 0.00 -> 0.08 -> 0.005 with both sides quoted at
	// every tick produces exactly one long trade: opened on tick two,
	// closed on tick three.
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	tl := timelineOf(
		quoted(100, 0.50, 0.50, 0.49, 0.51),
		quoted(200, 0.58, 0.50, 0.49, 0.51),
		quoted(300, 0.505, 0.50, 0.49, 0.51),
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected exactly 1 trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]
	if trade.Side != types.SideLong {
		t.Errorf("expected long trade, got %s", trade.Side)
	}
	if trade.EntryTime != 200 {
		t.Errorf("expected entry at tick 2 (t=200), got %d", trade.EntryTime)
	}
	if trade.ExitTime != 300 {
		t.Errorf("expected exit at tick 3 (t=300), got %d", trade.ExitTime)
	}
	if trade.EntryPrice != 0.51 {
		t.Errorf("expected entry at ask 0.51, got %g", trade.EntryPrice)
	}
	if trade.ExitPrice != 0.49 {
		t.Errorf("expected exit at bid 0.49, got %g", trade.ExitPrice)
	}
	if trade.EntryUsedPenalty || trade.ExitUsedPenalty {
		t.Error("expected no penalties with full quotes")
	}

	wantGross := (20.0 / 0.51) * (0.49 - 0.51)
	if !floatEquals(result.GrossProfit, wantGross, epsilon) {
		t.Errorf("expected gross %g, got %g", wantGross, result.GrossProfit)
	}
	if !floatEquals(result.NetProfit, wantGross, epsilon) {
		t.Errorf("expected net == gross without costs, got %g", result.NetProfit)
	}
}

func TestRun_ShortRoundTrip(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	tl := timelineOf(
		quoted(100, 0.50, 0.50, 0.49, 0.51),
		quoted(200, 0.42, 0.50, 0.49, 0.51), // div -0.08, widening
		quoted(300, 0.495, 0.50, 0.49, 0.51), // |div| 0.005 < exit
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]
	if trade.Side != types.SideShort {
		t.Errorf("expected short trade, got %s", trade.Side)
	}
	if trade.EntryPrice != 0.49 {
		t.Errorf("expected short entry at bid 0.49, got %g", trade.EntryPrice)
	}
	if trade.ExitPrice != 0.51 {
		t.Errorf("expected short exit at ask 0.51, got %g", trade.ExitPrice)
	}

	wantContracts := 20.0 / (1 - 0.49)
	if !floatEquals(trade.Contracts, wantContracts, epsilon) {
		t.Errorf("expected %g contracts, got %g", wantContracts, trade.Contracts)
	}
	wantGross := wantContracts * (0.49 - 0.51)
	if !floatEquals(trade.GrossProfit, wantGross, epsilon) {
		t.Errorf("expected gross %g, got %g", wantGross, trade.GrossProfit)
	}
}

func TestRun_FirstTickAutoQualifiesWidening(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	tl := timelineOf(
		quoted(100, 0.58, 0.50, 0.49, 0.51), // div 0.08 on the very first tick
		quoted(200, 0.58, 0.50, 0.49, 0.51),
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	if result.Trades[0].EntryTime != 100 {
		t.Errorf("expected entry on first tick, got t=%d", result.Trades[0].EntryTime)
	}
}

func TestRun_NarrowingBlocksEntry(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	tl := timelineOf(
		// Above threshold but the ask is missing: signal fires, no fill.
		types.AlignedPoint{Timestamp: 100, ForecastProb: 0.60, MarketMid: 0.50, MarketBid: types.Float64(0.49)},
		// Still above threshold but narrowing vs 0.10: no entry.
		quoted(200, 0.58, 0.50, 0.49, 0.51),
		// Widening again vs 0.08: entry.
		quoted(300, 0.59, 0.50, 0.49, 0.51),
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.SkippedMissingQuote != 1 {
		t.Errorf("expected 1 missing-quote skip, got %d", result.SkippedMissingQuote)
	}
	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	if result.Trades[0].EntryTime != 300 {
		t.Errorf("expected entry at t=300 after widening resumed, got t=%d", result.Trades[0].EntryTime)
	}
}

func TestRun_MinHoldAndHysteresisInterplay(t *testing.T) {
	// An exit signal during the minimum hold consumes the boundary
	// crossing; the signal must leave the exit band and cross back in
	// before the position can close.
	s := newTestSimulator(Config{MinHoldSeconds: 60})

	tl := timelineOf(
		quoted(1000, 0.58, 0.50, 0.49, 0.51),  // enter long, div 0.08
		quoted(1030, 0.505, 0.50, 0.49, 0.51), // crossing, but held only 30s
		quoted(1090, 0.504, 0.50, 0.49, 0.51), // inside band, no crossing
		quoted(1120, 0.52, 0.50, 0.49, 0.51),  // back outside the band
		quoted(1150, 0.505, 0.50, 0.49, 0.51), // crossing again, hold ok
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	if result.Trades[0].ExitTime != 1150 {
		t.Errorf("expected exit at t=1150, got t=%d", result.Trades[0].ExitTime)
	}
	if result.Trades[0].ExitUsedPenalty {
		t.Error("expected clean exit at bid")
	}
}

func TestRun_ForcedExitAtTimelineEnd(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0, ForcedExitPenalty: 0.03})

	tl := timelineOf(
		quoted(100, 0.58, 0.50, 0.49, 0.51),
		quoted(200, 0.58, 0.50, 0.49, 0.51), // still diverged at the end
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 forced trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]
	if !trade.ExitUsedPenalty {
		t.Error("forced exit must be flagged as a penalty exit")
	}
	if trade.ExitTime != 200 {
		t.Errorf("expected exit at last tick, got t=%d", trade.ExitTime)
	}
	// Last mid shaded by the forced penalty, larger than the fallback.
	if !floatEquals(trade.ExitPrice, 0.47, epsilon) {
		t.Errorf("expected forced exit at 0.50-0.03=0.47, got %g", trade.ExitPrice)
	}
}

func TestRun_FallbackPenaltyWhenExitSideMissing(t *testing.T) {
	s := newTestSimulator(Config{
		MinHoldSeconds:      0,
		FallbackExitPenalty: 0.01,
		Costs:               CostConfig{BetAmount: 20, SlippageRate: 0.01},
	})

	exitTick := types.AlignedPoint{
		Timestamp:    300,
		ForecastProb: 0.505,
		MarketMid:    0.50,
		MarketAsk:    types.Float64(0.51), // bid missing: long cannot exit clean
	}

	tl := timelineOf(
		quoted(100, 0.50, 0.50, 0.49, 0.51),
		quoted(200, 0.58, 0.50, 0.49, 0.51),
		exitTick,
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]
	if !trade.ExitUsedPenalty {
		t.Error("expected penalty exit with missing bid")
	}
	if !floatEquals(trade.ExitPrice, 0.49, epsilon) {
		t.Errorf("expected exit at mid-penalty 0.49, got %g", trade.ExitPrice)
	}

	// Penalized legs never pay slippage: only the entry leg is charged.
	entryVolume := trade.Contracts * trade.EntryPrice
	wantSlippage := 0.01 * entryVolume
	if !floatEquals(trade.Slippage, wantSlippage, epsilon) {
		t.Errorf("expected slippage %g on entry leg only, got %g", wantSlippage, trade.Slippage)
	}
}

func TestRun_SlippageOnBothCleanLegs(t *testing.T) {
	s := newTestSimulator(Config{
		MinHoldSeconds: 0,
		Costs:          CostConfig{BetAmount: 20, SlippageRate: 0.01},
	})

	tl := timelineOf(
		quoted(100, 0.50, 0.50, 0.49, 0.51),
		quoted(200, 0.58, 0.50, 0.49, 0.51),
		quoted(300, 0.505, 0.50, 0.49, 0.51),
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]
	entryVolume := trade.Contracts * trade.EntryPrice
	exitVolume := trade.Contracts * trade.ExitPrice
	wantSlippage := 0.01*entryVolume + 0.01*exitVolume
	if !floatEquals(trade.Slippage, wantSlippage, epsilon) {
		t.Errorf("expected slippage %g, got %g", wantSlippage, trade.Slippage)
	}
}

func TestRun_FeesOnBothLegs(t *testing.T) {
	s := newTestSimulator(Config{
		MinHoldSeconds: 0,
		Costs:          CostConfig{BetAmount: 20, EnableFees: true, FeeRate: 0.07},
	})

	tl := timelineOf(
		quoted(100, 0.56, 0.49, 0.48, 0.50), // div 0.07: enter long at 0.50
		quoted(200, 0.495, 0.49, 0.48, 0.50), // div 0.005: exit at 0.48
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	trade := result.Trades[0]

	// contracts = 20/0.50 = 40
	// entry fee = 0.07*0.50*0.50*(40*0.50) = 0.35
	// exit fee  = 0.07*0.48*0.52*(40*0.48) = 0.3354624
	if !floatEquals(trade.Fees, 0.35+0.3354624, epsilon) {
		t.Errorf("expected fees 0.6854624, got %g", trade.Fees)
	}
	wantNet := trade.GrossProfit - trade.Fees
	if !floatEquals(trade.NetProfit, wantNet, epsilon) {
		t.Errorf("expected net %g, got %g", wantNet, trade.NetProfit)
	}
}

func TestRun_SizingGuards(t *testing.T) {
	t.Run("long-at-zero-ask", func(t *testing.T) {
		s := newTestSimulator(Config{MinHoldSeconds: 0})
		tl := timelineOf(
			types.AlignedPoint{
				Timestamp:    100,
				ForecastProb: 0.58,
				MarketMid:    0.50,
				MarketBid:    types.Float64(0.49),
				MarketAsk:    types.Float64(0.0),
			},
		)

		result := s.Run(tl, 0.05, 0.01)

		if result.TradeCount != 0 {
			t.Errorf("expected no trade at ask=0, got %d", result.TradeCount)
		}
		if result.SkippedSizingGuard != 1 {
			t.Errorf("expected 1 sizing-guard skip, got %d", result.SkippedSizingGuard)
		}
	})

	t.Run("short-at-unit-bid", func(t *testing.T) {
		s := newTestSimulator(Config{MinHoldSeconds: 0})
		tl := timelineOf(
			types.AlignedPoint{
				Timestamp:    100,
				ForecastProb: 0.40,
				MarketMid:    0.99,
				MarketBid:    types.Float64(1.0),
			},
		)

		result := s.Run(tl, 0.05, 0.01)

		if result.TradeCount != 0 {
			t.Errorf("expected no trade at bid=1, got %d", result.TradeCount)
		}
		if result.SkippedSizingGuard != 1 {
			t.Errorf("expected 1 sizing-guard skip, got %d", result.SkippedSizingGuard)
		}
	})
}

func TestRun_ShortLossCappedAtBet(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	// Short at bid 0.30; market runs to 1.0 and the exit fills at ask 1.0.
	tl := timelineOf(
		quoted(100, 0.20, 0.30, 0.30, 0.32), // div -0.10: short at 0.30
		quoted(200, 0.995, 1.0, 0.99, 1.0),  // div -0.005: exit at ask 1.0
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	if !floatEquals(result.Trades[0].NetProfit, -20.0, 1e-9) {
		t.Errorf("expected loss capped at bet 20, got %g", result.Trades[0].NetProfit)
	}
}

func TestRun_EntriesEqualExits(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0, ForcedExitPenalty: 0.03})

	tl := timelineOf(
		quoted(100, 0.58, 0.50, 0.49, 0.51),  // long entry
		quoted(200, 0.505, 0.50, 0.49, 0.51), // exit
		quoted(300, 0.50, 0.50, 0.49, 0.51),  // flat
		quoted(400, 0.42, 0.50, 0.49, 0.51),  // short entry
		quoted(500, 0.495, 0.50, 0.49, 0.51), // exit
		quoted(600, 0.59, 0.50, 0.49, 0.51),  // long entry, then timeline ends
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 3 {
		t.Fatalf("expected 3 trades, got %d", result.TradeCount)
	}
	// Every entry has an exit and positions never overlap.
	for i, trade := range result.Trades {
		if trade.ExitTime < trade.EntryTime {
			t.Errorf("trade %d exits before it enters", i)
		}
		if i > 0 && trade.EntryTime < result.Trades[i-1].ExitTime {
			t.Errorf("trade %d overlaps the previous position", i)
		}
	}
	if !result.Trades[2].ExitUsedPenalty {
		t.Error("final open position must be force-closed with a penalty")
	}
	if result.Trades[0].Side != types.SideLong ||
		result.Trades[1].Side != types.SideShort ||
		result.Trades[2].Side != types.SideLong {
		t.Errorf("unexpected trade sides: %s %s %s",
			result.Trades[0].Side, result.Trades[1].Side, result.Trades[2].Side)
	}
}

func TestRun_Deterministic(t *testing.T) {
	s := newTestSimulator(Config{
		MinHoldSeconds: 0,
		Costs:          CostConfig{BetAmount: 20, EnableFees: true, FeeRate: 0.07, SlippageRate: 0.005},
	})

	tl := timelineOf(
		quoted(100, 0.58, 0.50, 0.49, 0.51),
		quoted(200, 0.505, 0.50, 0.49, 0.51),
		quoted(300, 0.42, 0.50, 0.49, 0.51),
		quoted(400, 0.495, 0.50, 0.49, 0.51),
	)

	first := s.Run(tl, 0.05, 0.01)
	second := s.Run(tl, 0.05, 0.01)

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical results")
	}
}

func TestRun_OutcomeNeverRead(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	points := []types.AlignedPoint{
		quoted(100, 0.58, 0.50, 0.49, 0.51),
		quoted(200, 0.505, 0.50, 0.49, 0.51),
	}

	homeWin := &types.EventTimeline{EventID: "evt", Points: points, RealizedOutcome: types.OutcomeHome}
	awayWin := &types.EventTimeline{EventID: "evt", Points: points, RealizedOutcome: types.OutcomeAway}

	if !reflect.DeepEqual(s.Run(homeWin, 0.05, 0.01), s.Run(awayWin, 0.05, 0.01)) {
		t.Error("profit must come from prices alone, never the realized outcome")
	}
}

func TestRun_EmptyTimeline(t *testing.T) {
	s := newTestSimulator(Config{})

	result := s.Run(&types.EventTimeline{EventID: "evt-empty"}, 0.05, 0.01)

	if result.TradeCount != 0 || len(result.Trades) != 0 {
		t.Errorf("expected zero trades on empty timeline, got %+v", result)
	}
}

func TestRun_ExitThresholdZeroHoldsToEnd(t *testing.T) {
	// |div| < 0 is impossible, so exit 0 means positions ride until the
	// forced close.
	s := newTestSimulator(Config{MinHoldSeconds: 0, ForcedExitPenalty: 0.03})

	tl := timelineOf(
		quoted(100, 0.58, 0.50, 0.49, 0.51),
		quoted(200, 0.50, 0.50, 0.49, 0.51), // div 0, would exit under any positive threshold
		quoted(300, 0.50, 0.50, 0.49, 0.51),
	)

	result := s.Run(tl, 0.05, 0.0)

	if result.TradeCount != 1 {
		t.Fatalf("expected 1 trade, got %d", result.TradeCount)
	}
	if !result.Trades[0].ExitUsedPenalty || result.Trades[0].ExitTime != 300 {
		t.Errorf("expected forced exit at the end, got %+v", result.Trades[0])
	}
}

func TestRun_WinRate(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	// One winner: buy at 0.51, sell at 0.59.
	tl := timelineOf(
		quoted(100, 0.58, 0.50, 0.49, 0.51),
		quoted(200, 0.605, 0.60, 0.59, 0.61),
	)

	result := s.Run(tl, 0.05, 0.01)

	if result.TradeCount != 1 || result.WinCount != 1 {
		t.Fatalf("expected 1 winning trade, got %d/%d", result.WinCount, result.TradeCount)
	}
	if result.WinRate() != 1.0 {
		t.Errorf("expected win rate 1.0, got %g", result.WinRate())
	}
	if (Result{}).WinRate() != 0 {
		t.Error("expected zero win rate with no trades")
	}
}

func TestRun_GamePhase(t *testing.T) {
	s := newTestSimulator(Config{MinHoldSeconds: 0})

	tests := []struct {
		name      string
		start     int64
		duration  int64
		entryTime int64
		want      types.GamePhase
	}{
		{name: "early-third", start: 0, duration: 3000, entryTime: 200, want: types.PhaseEarly},
		{name: "middle-third", start: 0, duration: 3000, entryTime: 1500, want: types.PhaseMid},
		{name: "late-third", start: 0, duration: 3000, entryTime: 2800, want: types.PhaseLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := &types.EventTimeline{
				EventID:         "evt",
				EventStart:      types.Int64(tt.start),
				DurationSeconds: types.Int64(tt.duration),
				Points: []types.AlignedPoint{
					quoted(tt.entryTime, 0.58, 0.50, 0.49, 0.51),
					quoted(tt.entryTime+10, 0.505, 0.50, 0.49, 0.51),
				},
			}

			result := s.Run(tl, 0.05, 0.01)

			if result.TradeCount != 1 {
				t.Fatalf("expected 1 trade, got %d", result.TradeCount)
			}
			if result.Trades[0].GamePhase != tt.want {
				t.Errorf("expected phase %s, got %s", tt.want, result.Trades[0].GamePhase)
			}
		})
	}
}
