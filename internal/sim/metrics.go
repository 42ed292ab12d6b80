package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal tracks completed trades by side.
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probedge_sim_trades_total",
			Help: "Total number of simulated trades",
		},
		[]string{"side"},
	)

	// SkippedEntriesTotal tracks entry signals that could not execute.
	SkippedEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "probedge_sim_skipped_entries_total",
			Help: "Total number of entry signals skipped",
		},
		[]string{"reason"},
	)

	// ForcedExitsTotal tracks positions closed by timeline end.
	ForcedExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_sim_forced_exits_total",
		Help: "Total number of positions force-closed at timeline end",
	})

	// PenaltyExitsTotal tracks normal exits that fell back to a penalized mid.
	PenaltyExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "probedge_sim_penalty_exits_total",
		Help: "Total number of exits executed at a penalized mid price",
	})

	// TradeNetProfitUSD tracks per-trade net profit.
	TradeNetProfitUSD = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probedge_sim_trade_net_profit_usd",
		Help:    "Net profit per simulated trade in USD",
		Buckets: []float64{-20, -10, -5, -2, -1, 0, 1, 2, 5, 10, 20},
	})

	// TradeHoldSeconds tracks holding time per trade.
	TradeHoldSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "probedge_sim_trade_hold_seconds",
		Help:    "Holding time per simulated trade in seconds",
		Buckets: prometheus.ExponentialBuckets(30, 2, 10), // 30s ... ~4h
	})
)
