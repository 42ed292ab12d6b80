package sim

import (
	"math"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/types"
)

// position is the simulator's current exposure.
type position int

const (
	flat position = iota
	long
	short
)

// Config holds simulator configuration shared across all invocations.
// Thresholds vary per grid combination and are passed to Run.
type Config struct {
	MinHoldSeconds      int64
	FallbackExitPenalty float64
	ForcedExitPenalty   float64
	Costs               CostConfig
	Logger              *zap.Logger
}

// Simulator replays one event timeline under one threshold pair. It is
// pure and synchronous: state lives on the stack of a single Run call,
// so one Simulator may be shared by any number of goroutines.
type Simulator struct {
	config Config
	logger *zap.Logger
}

// Result folds one Run's trades into totals.
type Result struct {
	Trades        []types.Trade
	GrossProfit   float64
	NetProfit     float64
	TotalFees     float64
	TotalSlippage float64
	TradeCount    int
	WinCount      int

	// Entry signals that fired but could not execute.
	SkippedMissingQuote int
	SkippedSizingGuard  int
}

// WinRate returns the share of trades with positive net profit, zero
// when there were no trades.
func (r Result) WinRate() float64 {
	if r.TradeCount == 0 {
		return 0
	}
	return float64(r.WinCount) / float64(r.TradeCount)
}

// runState is the per-invocation state machine. Never shared.
type runState struct {
	pos        position
	prevDiv    float64
	prevAbsDiv float64
	prevSet    bool

	entryTime  int64
	entryPrice float64
	entryMid   float64
	entryBid   *float64
	entryAsk   *float64
	contracts  float64
}

// New creates a new divergence trade simulator.
func New(cfg Config) *Simulator {
	return &Simulator{
		config: cfg,
		logger: cfg.Logger,
	}
}

// Run replays the timeline under the given entry/exit thresholds and
// returns the completed trades in tick order. An open position at the
// end of the timeline is force-closed with a penalty. Profit comes
// strictly from execution prices; the realized outcome is never read.
func (s *Simulator) Run(timeline *types.EventTimeline, entryThreshold, exitThreshold float64) Result {
	var result Result
	var st runState

	for i := range timeline.Points {
		point := &timeline.Points[i]
		div := point.Divergence()

		switch st.pos {
		case flat:
			s.tryEnter(timeline, point, div, entryThreshold, &st, &result)
		case long, short:
			s.tryExit(timeline, point, div, exitThreshold, &st, &result)
		}

		st.prevDiv = div
		st.prevAbsDiv = math.Abs(div)
		st.prevSet = true
	}

	if st.pos != flat {
		s.forceExit(timeline, &st, &result)
	}

	return result
}

// tryEnter opens a position when the divergence exceeds the entry
// threshold while still widening and the required side quote exists.
// The first tick qualifies as widening vacuously.
func (s *Simulator) tryEnter(timeline *types.EventTimeline, point *types.AlignedPoint, div, entryThreshold float64, st *runState, result *Result) {
	var (
		side  position
		quote *float64
	)

	switch {
	case div > entryThreshold && (!st.prevSet || div > st.prevDiv):
		side, quote = long, point.MarketAsk
	case div < -entryThreshold && (!st.prevSet || div < st.prevDiv):
		side, quote = short, point.MarketBid
	default:
		return
	}

	if quote == nil {
		result.SkippedMissingQuote++
		SkippedEntriesTotal.WithLabelValues("missing_quote").Inc()
		s.logger.Debug("entry-skipped-missing-quote",
			zap.String("event-id", timeline.EventID),
			zap.Int64("timestamp", point.Timestamp),
			zap.Float64("divergence", div))
		return
	}

	price := clamp01(*quote)

	var (
		contracts float64
		ok        bool
	)
	if side == long {
		contracts, ok = contractsLong(s.config.Costs.BetAmount, price)
	} else {
		contracts, ok = contractsShort(s.config.Costs.BetAmount, price)
	}
	if !ok {
		result.SkippedSizingGuard++
		SkippedEntriesTotal.WithLabelValues("sizing_guard").Inc()
		s.logger.Debug("entry-skipped-sizing-guard",
			zap.String("event-id", timeline.EventID),
			zap.Int64("timestamp", point.Timestamp),
			zap.Float64("price", price))
		return
	}

	st.pos = side
	st.entryTime = point.Timestamp
	st.entryPrice = price
	st.entryMid = point.MarketMid
	st.entryBid = point.MarketBid
	st.entryAsk = point.MarketAsk
	st.contracts = contracts
}

// tryExit closes the position when the signal has crossed back inside
// the exit threshold (hysteresis) and the minimum hold has elapsed.
func (s *Simulator) tryExit(timeline *types.EventTimeline, point *types.AlignedPoint, div, exitThreshold float64, st *runState, result *Result) {
	absDiv := math.Abs(div)
	if absDiv >= exitThreshold {
		return
	}
	if !st.prevSet || st.prevAbsDiv < exitThreshold {
		return
	}
	if point.Timestamp-st.entryTime < s.config.MinHoldSeconds {
		return
	}

	exitPrice, usedPenalty := s.exitPrice(st.pos, point)
	s.closeTrade(timeline, point, exitPrice, usedPenalty, false, st, result)
}

// exitPrice picks the execution price for a normal exit: the opposite
// side of the entry, or the mid shaded by the fallback penalty when
// that side is missing.
func (s *Simulator) exitPrice(pos position, point *types.AlignedPoint) (float64, bool) {
	if pos == long {
		if point.MarketBid != nil {
			return clamp01(*point.MarketBid), false
		}
		return clamp01(point.MarketMid - s.config.FallbackExitPenalty), true
	}
	if point.MarketAsk != nil {
		return clamp01(*point.MarketAsk), false
	}
	return clamp01(point.MarketMid + s.config.FallbackExitPenalty), true
}

// forceExit closes an open position at the end of the timeline. The
// last mid is shaded by the forced penalty, modeling the liquidity
// collapse at event end, and the trade is always flagged.
func (s *Simulator) forceExit(timeline *types.EventTimeline, st *runState, result *Result) {
	last := &timeline.Points[len(timeline.Points)-1]

	var price float64
	if st.pos == long {
		price = clamp01(last.MarketMid - s.config.ForcedExitPenalty)
	} else {
		price = clamp01(last.MarketMid + s.config.ForcedExitPenalty)
	}

	ForcedExitsTotal.Inc()
	s.closeTrade(timeline, last, price, true, true, st, result)
}

func (s *Simulator) closeTrade(timeline *types.EventTimeline, point *types.AlignedPoint, exitPrice float64, exitUsedPenalty, forced bool, st *runState, result *Result) {
	costs := s.config.Costs

	var gross float64
	if st.pos == long {
		gross = st.contracts * (exitPrice - st.entryPrice)
	} else {
		gross = st.contracts * (st.entryPrice - exitPrice)
	}

	entryVolume := st.contracts * st.entryPrice
	exitVolume := st.contracts * exitPrice

	var fees float64
	if costs.EnableFees {
		fees = legFee(costs.FeeRate, st.entryPrice, entryVolume) +
			legFee(costs.FeeRate, exitPrice, exitVolume)
	}

	// Slippage and the price penalty are mutually exclusive per leg.
	// Entries always execute at a real quote, so the entry leg always
	// pays slippage.
	var slippage float64
	if costs.SlippageRate > 0 {
		slippage = costs.SlippageRate * entryVolume
		if !exitUsedPenalty {
			slippage += costs.SlippageRate * exitVolume
		}
	}

	gross = s.finiteOrZero(gross, "gross_profit", timeline.EventID)
	fees = s.finiteOrZero(fees, "fees", timeline.EventID)
	slippage = s.finiteOrZero(slippage, "slippage", timeline.EventID)
	net := s.finiteOrZero(gross-fees-slippage, "net_profit", timeline.EventID)

	side := types.SideLong
	if st.pos == short {
		side = types.SideShort
	}

	trade := types.Trade{
		EventID:          timeline.EventID,
		Side:             side,
		EntryTime:        st.entryTime,
		ExitTime:         point.Timestamp,
		EntryPrice:       st.entryPrice,
		EntryMid:         st.entryMid,
		EntryBid:         st.entryBid,
		EntryAsk:         st.entryAsk,
		ExitPrice:        exitPrice,
		ExitMid:          point.MarketMid,
		ExitBid:          point.MarketBid,
		ExitAsk:          point.MarketAsk,
		Contracts:        st.contracts,
		GrossProfit:      gross,
		Fees:             fees,
		Slippage:         slippage,
		NetProfit:        net,
		GamePhase:        gamePhase(timeline, st.entryTime),
		EntryUsedPenalty: false,
		ExitUsedPenalty:  exitUsedPenalty,
	}

	result.Trades = append(result.Trades, trade)
	result.GrossProfit += gross
	result.NetProfit += net
	result.TotalFees += fees
	result.TotalSlippage += slippage
	result.TradeCount++
	if trade.Won() {
		result.WinCount++
	}

	TradesTotal.WithLabelValues(string(side)).Inc()
	TradeNetProfitUSD.Observe(net)
	TradeHoldSeconds.Observe(float64(trade.HoldSeconds()))
	if exitUsedPenalty && !forced {
		PenaltyExitsTotal.Inc()
	}

	st.pos = flat
	st.entryBid = nil
	st.entryAsk = nil
}

func (s *Simulator) finiteOrZero(v float64, field, eventID string) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		s.logger.Warn("non-finite-value-zeroed",
			zap.String("field", field),
			zap.String("event-id", eventID))
		return 0
	}
	return v
}

// gamePhase buckets the entry into the early, middle, or late third of
// the event. Without usable bounds the middle bucket is used.
func gamePhase(timeline *types.EventTimeline, entryTime int64) types.GamePhase {
	start, end, ok := timeline.PhaseBounds()
	if !ok || end <= start {
		return types.PhaseMid
	}
	frac := float64(entryTime-start) / float64(end-start)
	switch {
	case frac < 1.0/3.0:
		return types.PhaseEarly
	case frac < 2.0/3.0:
		return types.PhaseMid
	default:
		return types.PhaseLate
	}
}
