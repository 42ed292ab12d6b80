package align

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/types"
)

// sideEpsilon bounds the sanity checks on dual-sided quotes: two mids that
// sum to ~1.0 while sitting far apart indicate an unconverted away quote.
const sideEpsilon = 0.05

// Config holds aligner configuration.
type Config struct {
	ExcludeFirstSeconds int64
	ExcludeLastSeconds  int64
	Logger              *zap.Logger
}

// Aligner converts raw per-event snapshot rows into a normalized,
// time-ordered EventTimeline.
type Aligner struct {
	config Config
	logger *zap.Logger
}

// Stats carries per-event alignment diagnostics.
type Stats struct {
	TotalRows              int
	AlignedPoints          int
	DroppedMissingForecast int
	DroppedInvalidForecast int
	DroppedMissingMid      int
	DroppedOutsideWindow   int
	CollapsedQuotes        int
	DivergentSides         int
}

// Dropped returns the total number of rows that did not survive alignment.
func (s Stats) Dropped() int {
	return s.DroppedMissingForecast + s.DroppedInvalidForecast +
		s.DroppedMissingMid + s.DroppedOutsideWindow
}

// New creates a new snapshot aligner.
func New(cfg Config) *Aligner {
	return &Aligner{
		config: cfg,
		logger: cfg.Logger,
	}
}

// Build aligns raw rows for one event into an EventTimeline. An event whose
// rows all fail alignment yields an empty timeline, never an error.
func (a *Aligner) Build(eventID string, rows []types.SnapshotRow, meta *types.EventMeta) (*types.EventTimeline, Stats) {
	stats := Stats{TotalRows: len(rows)}

	timeline := &types.EventTimeline{EventID: eventID}
	if meta != nil {
		timeline.EventStart = meta.EventStart
		timeline.DurationSeconds = meta.DurationSeconds
		timeline.RealizedOutcome = meta.Winner
	}
	if timeline.RealizedOutcome == "" {
		timeline.RealizedOutcome = types.OutcomeUnknown
	}

	windowLo, windowHi, hasWindow := a.exclusionWindow(meta)

	points := make([]types.AlignedPoint, 0, len(rows))
	for _, row := range rows {
		if hasWindow && (row.Timestamp < windowLo || row.Timestamp > windowHi) {
			stats.DroppedOutsideWindow++
			continue
		}

		if row.ForecastProb == nil {
			stats.DroppedMissingForecast++
			continue
		}
		forecast, ok := normalizeProb(*row.ForecastProb)
		if !ok {
			stats.DroppedInvalidForecast++
			AlignPointsDroppedTotal.WithLabelValues("invalid_forecast").Inc()
			continue
		}

		home := normalizeQuote(row.HomeMid, row.HomeBid, row.HomeAsk)
		away := normalizeQuote(row.AwayMid, row.AwayBid, row.AwayAsk)

		if home.mid != nil && away.mid != nil {
			a.checkDivergentSides(eventID, row.Timestamp, *home.mid, *away.mid, &stats)
		}

		selected, ok := selectSide(home, away)
		if !ok {
			stats.DroppedMissingMid++
			AlignPointsDroppedTotal.WithLabelValues("missing_mid").Inc()
			continue
		}

		if selected.collapsed() {
			stats.CollapsedQuotes++
			AlignCollapsedQuotesTotal.Inc()
		}

		points = append(points, types.AlignedPoint{
			Timestamp:    row.Timestamp,
			ForecastProb: forecast,
			MarketMid:    *selected.mid,
			MarketBid:    selected.bid,
			MarketAsk:    selected.ask,
		})
	}

	// Stable sort keeps duplicate-timestamp rows in source order.
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp < points[j].Timestamp
	})

	timeline.Points = points
	stats.AlignedPoints = len(points)

	AlignPointsTotal.Add(float64(stats.TotalRows))
	AlignPointsDroppedTotal.WithLabelValues("missing_forecast").Add(float64(stats.DroppedMissingForecast))
	AlignPointsDroppedTotal.WithLabelValues("outside_window").Add(float64(stats.DroppedOutsideWindow))
	AlignTimelinePoints.Observe(float64(stats.AlignedPoints))

	if stats.Dropped() > 0 {
		a.logger.Debug("aligned-event",
			zap.String("event-id", eventID),
			zap.Int("rows", stats.TotalRows),
			zap.Int("points", stats.AlignedPoints),
			zap.Int("dropped", stats.Dropped()))
	}

	return timeline, stats
}

// exclusionWindow computes the inclusive timestamp window a point must fall
// inside. Without event metadata no trimming is applied.
func (a *Aligner) exclusionWindow(meta *types.EventMeta) (int64, int64, bool) {
	if meta == nil || meta.EventStart == nil || meta.DurationSeconds == nil {
		return 0, 0, false
	}
	lo := *meta.EventStart + a.config.ExcludeFirstSeconds
	hi := *meta.EventStart + *meta.DurationSeconds - a.config.ExcludeLastSeconds
	return lo, hi, true
}

func (a *Aligner) checkDivergentSides(eventID string, ts int64, homeMid, awayMid float64, stats *Stats) {
	sum := math.Abs(homeMid + awayMid - 1.0)
	diff := math.Abs(homeMid - awayMid)
	if sum < sideEpsilon && diff >= sideEpsilon {
		stats.DivergentSides++
		AlignDivergentSidesTotal.Inc()
		a.logger.Warn("divergent-side-quotes",
			zap.String("event-id", eventID),
			zap.Int64("timestamp", ts),
			zap.Float64("home-mid", homeMid),
			zap.Float64("away-mid", awayMid))
	}
}

// quote is one market side after normalization. Invalid values are nil.
type quote struct {
	mid *float64
	bid *float64
	ask *float64
}

func (q quote) collapsed() bool {
	return q.mid != nil && q.bid != nil && q.ask != nil &&
		*q.bid == *q.ask && *q.bid == *q.mid
}

// score ranks a side for selection: 2 with a full bid/ask pair, 1 with a
// partial pair, 0 bare mid.
func (q quote) score() int {
	switch {
	case q.bid != nil && q.ask != nil:
		return 2
	case q.bid != nil || q.ask != nil:
		return 1
	default:
		return 0
	}
}

func normalizeQuote(mid, bid, ask *float64) quote {
	return quote{
		mid: normalizeOptional(mid),
		bid: normalizeOptional(bid),
		ask: normalizeOptional(ask),
	}
}

func normalizeOptional(v *float64) *float64 {
	if v == nil {
		return nil
	}
	normalized, ok := normalizeProb(*v)
	if !ok {
		return nil
	}
	return &normalized
}

// normalizeProb maps percentage-space values (1,100] into probability space
// and rejects non-finite values and values outside [0,100].
func normalizeProb(v float64) (float64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < 0 || v > 100 {
		return 0, false
	}
	if v > 1.0 {
		return v / 100.0, true
	}
	return v, true
}

// selectSide picks the market side to trade against. Away-denominated quotes
// arrive already converted into home-probability space and are never
// inverted here.
func selectSide(home, away quote) (quote, bool) {
	switch {
	case home.mid != nil && away.mid != nil:
		if away.score() > home.score() {
			return away, true
		}
		return home, true
	case home.mid != nil:
		return home, true
	case away.mid != nil:
		return away, true
	default:
		return quote{}, false
	}
}

