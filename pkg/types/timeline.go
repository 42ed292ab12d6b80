package types

// Outcome labels the realized result of a binary event. It is carried
// for stratification and audit only; profit is never derived from it.
type Outcome string

const (
	OutcomeHome    Outcome = "home"
	OutcomeAway    Outcome = "away"
	OutcomeUnknown Outcome = "unknown"
)

// AlignedPoint is one sample on an event's timeline after alignment.
// ForecastProb and MarketMid are always present; bid and ask are
// optional and nil when the upstream quote did not carry them.
type AlignedPoint struct {
	Timestamp    int64 // unix seconds
	ForecastProb float64
	MarketMid    float64
	MarketBid    *float64
	MarketAsk    *float64
}

// Divergence returns forecast probability minus market mid-price.
func (p AlignedPoint) Divergence() float64 {
	return p.ForecastProb - p.MarketMid
}

// EventTimeline is the ordered, immutable sequence of aligned points for
// one event. Points are strictly ascending by Timestamp.
type EventTimeline struct {
	EventID         string
	Points          []AlignedPoint
	EventStart      *int64
	DurationSeconds *int64
	RealizedOutcome Outcome
}

// Empty reports whether the timeline has no points. An empty timeline is
// valid input to the simulator and yields zero trades.
func (t *EventTimeline) Empty() bool {
	return len(t.Points) == 0
}

// PhaseBounds returns the time range used to bucket trades into game
// phases: the event's scheduled start/end when metadata is available,
// otherwise the first and last observed timestamps.
func (t *EventTimeline) PhaseBounds() (start, end int64, ok bool) {
	if t.EventStart != nil && t.DurationSeconds != nil && *t.DurationSeconds > 0 {
		return *t.EventStart, *t.EventStart + *t.DurationSeconds, true
	}
	if len(t.Points) < 2 {
		return 0, 0, false
	}
	return t.Points[0].Timestamp, t.Points[len(t.Points)-1].Timestamp, true
}

// Float64 returns a pointer to v. Optional quote fields are pointers so
// that "absent" is explicit rather than a sentinel value.
func Float64(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
