package search

import (
	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/internal/sim"
)

// CombinationMetrics folds all trades for one (combination, split).
// Write-once: produced by the fold, consumed by selection and reports.
type CombinationMetrics struct {
	Combination grid.Combination
	Split       grid.Split

	NetProfit      float64
	GrossProfit    float64
	TotalFees      float64
	TotalSlippage  float64
	TradeCount     int
	WinRate        float64
	ProfitFactor   float64
	MaxDrawdown    float64
	AvgHoldSeconds float64

	EventsProcessed int
	EventsSkipped   int

	// IsValid marks the combination as rankable: enough trades to make
	// the metrics meaningful.
	IsValid bool
}

// accumulator folds simulation results event by event. Events must be
// added in a fixed order: max drawdown depends on the equity sequence.
type accumulator struct {
	net         float64
	gross       float64
	fees        float64
	slippage    float64
	trades      int
	wins        int
	grossWins   float64
	grossLosses float64
	holdSeconds int64

	equity      float64
	peak        float64
	maxDrawdown float64

	events  int
	skipped int
}

func newAccumulator() *accumulator {
	return &accumulator{}
}

// addResult folds one event's trades, in trade order, into the running
// totals and the equity curve.
func (a *accumulator) addResult(r sim.Result) {
	a.events++
	a.gross += r.GrossProfit
	a.fees += r.TotalFees
	a.slippage += r.TotalSlippage

	for _, trade := range r.Trades {
		a.net += trade.NetProfit
		a.trades++
		a.holdSeconds += trade.HoldSeconds()

		if trade.NetProfit > 0 {
			a.wins++
			a.grossWins += trade.NetProfit
		} else {
			a.grossLosses += -trade.NetProfit
		}

		a.equity += trade.NetProfit
		if a.equity > a.peak {
			a.peak = a.equity
		}
		if drawdown := a.peak - a.equity; drawdown > a.maxDrawdown {
			a.maxDrawdown = drawdown
		}
	}
}

// skip records an event dropped by a fetch or alignment failure.
func (a *accumulator) skip() {
	a.skipped++
}

// metrics seals the fold into a CombinationMetrics record.
func (a *accumulator) metrics(combo grid.Combination, split grid.Split, minTradeCount int) CombinationMetrics {
	m := CombinationMetrics{
		Combination:     combo,
		Split:           split,
		NetProfit:       a.net,
		GrossProfit:     a.gross,
		TotalFees:       a.fees,
		TotalSlippage:   a.slippage,
		TradeCount:      a.trades,
		MaxDrawdown:     a.maxDrawdown,
		EventsProcessed: a.events,
		EventsSkipped:   a.skipped,
		IsValid:         a.trades >= minTradeCount,
	}

	if a.trades > 0 {
		m.WinRate = float64(a.wins) / float64(a.trades)
		m.AvgHoldSeconds = float64(a.holdSeconds) / float64(a.trades)
	}
	// A run with no losing trades reports factor 0, not infinity.
	if a.grossLosses > 0 {
		m.ProfitFactor = a.grossWins / a.grossLosses
	}

	return m
}
