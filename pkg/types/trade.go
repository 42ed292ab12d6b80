package types

// Side is the direction of a simulated position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// GamePhase buckets a trade's entry into the early, middle, or late
// third of an event. Used only for result stratification.
type GamePhase string

const (
	PhaseEarly GamePhase = "early"
	PhaseMid   GamePhase = "mid"
	PhaseLate  GamePhase = "late"
)

// Trade is one completed round trip produced by the simulator. Records
// are immutable once created; the simulator is their only producer.
type Trade struct {
	EventID   string
	Side      Side
	EntryTime int64
	ExitTime  int64

	// Execution prices actually used, plus the book state at each leg
	// for audit. Bid/ask are nil when the tick did not carry them.
	EntryPrice float64
	EntryMid   float64
	EntryBid   *float64
	EntryAsk   *float64
	ExitPrice  float64
	ExitMid    float64
	ExitBid    *float64
	ExitAsk    *float64

	Contracts   float64
	GrossProfit float64
	Fees        float64
	Slippage    float64
	NetProfit   float64

	GamePhase        GamePhase
	EntryUsedPenalty bool
	ExitUsedPenalty  bool
}

// HoldSeconds returns the holding time of the trade.
func (t *Trade) HoldSeconds() int64 {
	return t.ExitTime - t.EntryTime
}

// Won reports whether the trade closed with positive net profit.
func (t *Trade) Won() bool {
	return t.NetProfit > 0
}
