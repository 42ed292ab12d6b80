package align

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/probedge/pkg/types"
)

func newTestAligner(excludeFirst, excludeLast int64) *Aligner {
	return New(Config{
		ExcludeFirstSeconds: excludeFirst,
		ExcludeLastSeconds:  excludeLast,
		Logger:              zap.NewNop(),
	})
}

func TestBuild_NormalizesPercentSpace(t *testing.T) {
	aligner := newTestAligner(0, 0)

	rows := []types.SnapshotRow{
		{
			Timestamp:    100,
			ForecastProb: types.Float64(61.0),
			HomeMid:      types.Float64(55.0),
			HomeBid:      types.Float64(54.0),
			HomeAsk:      types.Float64(56.0),
		},
	}

	timeline, stats := aligner.Build("evt-1", rows, nil)

	if stats.AlignedPoints != 1 {
		t.Fatalf("expected 1 aligned point, got %d", stats.AlignedPoints)
	}
	p := timeline.Points[0]
	if math.Abs(p.ForecastProb-0.61) > 1e-12 {
		t.Errorf("expected forecast 0.61, got %g", p.ForecastProb)
	}
	if math.Abs(p.MarketMid-0.55) > 1e-12 {
		t.Errorf("expected mid 0.55, got %g", p.MarketMid)
	}
	if p.MarketBid == nil || math.Abs(*p.MarketBid-0.54) > 1e-12 {
		t.Errorf("expected bid 0.54, got %v", p.MarketBid)
	}
	if p.MarketAsk == nil || math.Abs(*p.MarketAsk-0.56) > 1e-12 {
		t.Errorf("expected ask 0.56, got %v", p.MarketAsk)
	}
}

func TestBuild_RejectsOutOfRangeValues(t *testing.T) {
	aligner := newTestAligner(0, 0)

	tests := []struct {
		name string
		row  types.SnapshotRow
	}{
		{
			name: "forecast-above-100",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(101.0),
				HomeMid:      types.Float64(0.5),
			},
		},
		{
			name: "negative-forecast",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(-0.2),
				HomeMid:      types.Float64(0.5),
			},
		},
		{
			name: "nan-forecast",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(math.NaN()),
				HomeMid:      types.Float64(0.5),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeline, stats := aligner.Build("evt-1", []types.SnapshotRow{tt.row}, nil)
			if len(timeline.Points) != 0 {
				t.Errorf("expected point to be rejected, got %d points", len(timeline.Points))
			}
			if stats.DroppedInvalidForecast != 1 {
				t.Errorf("expected 1 invalid-forecast drop, got %d", stats.DroppedInvalidForecast)
			}
		})
	}
}

func TestBuild_InvalidMarketValueTreatedAsMissing(t *testing.T) {
	aligner := newTestAligner(0, 0)

	// Home mid is garbage; away side carries a valid quote and must win.
	rows := []types.SnapshotRow{
		{
			Timestamp:    1,
			ForecastProb: types.Float64(0.6),
			HomeMid:      types.Float64(250.0),
			AwayMid:      types.Float64(0.55),
			AwayBid:      types.Float64(0.54),
			AwayAsk:      types.Float64(0.56),
		},
	}

	timeline, stats := aligner.Build("evt-1", rows, nil)

	if stats.AlignedPoints != 1 {
		t.Fatalf("expected 1 aligned point, got %d", stats.AlignedPoints)
	}
	if timeline.Points[0].MarketMid != 0.55 {
		t.Errorf("expected away mid 0.55, got %g", timeline.Points[0].MarketMid)
	}
}

func TestBuild_QuoteSideSelection(t *testing.T) {
	aligner := newTestAligner(0, 0)

	tests := []struct {
		name    string
		row     types.SnapshotRow
		wantMid float64
	}{
		{
			name: "prefers-side-with-full-quote",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(0.6),
				HomeMid:      types.Float64(0.50),
				AwayMid:      types.Float64(0.52),
				AwayBid:      types.Float64(0.51),
				AwayAsk:      types.Float64(0.53),
			},
			wantMid: 0.52,
		},
		{
			name: "prefers-side-with-partial-quote",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(0.6),
				HomeMid:      types.Float64(0.50),
				AwayMid:      types.Float64(0.52),
				AwayBid:      types.Float64(0.51),
			},
			wantMid: 0.52,
		},
		{
			name: "both-full-prefers-home",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(0.6),
				HomeMid:      types.Float64(0.50),
				HomeBid:      types.Float64(0.49),
				HomeAsk:      types.Float64(0.51),
				AwayMid:      types.Float64(0.52),
				AwayBid:      types.Float64(0.51),
				AwayAsk:      types.Float64(0.53),
			},
			wantMid: 0.50,
		},
		{
			name: "bare-mids-prefers-home",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(0.6),
				HomeMid:      types.Float64(0.50),
				AwayMid:      types.Float64(0.52),
			},
			wantMid: 0.50,
		},
		{
			name: "only-away-present",
			row: types.SnapshotRow{
				Timestamp:    1,
				ForecastProb: types.Float64(0.6),
				AwayMid:      types.Float64(0.52),
			},
			wantMid: 0.52,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeline, _ := aligner.Build("evt-1", []types.SnapshotRow{tt.row}, nil)
			if len(timeline.Points) != 1 {
				t.Fatalf("expected 1 point, got %d", len(timeline.Points))
			}
			if timeline.Points[0].MarketMid != tt.wantMid {
				t.Errorf("expected mid %g, got %g", tt.wantMid, timeline.Points[0].MarketMid)
			}
		})
	}
}

func TestBuild_AwayQuoteNotInverted(t *testing.T) {
	aligner := newTestAligner(0, 0)

	// Away arrives already converted into home space. 0.30 stays 0.30.
	rows := []types.SnapshotRow{
		{
			Timestamp:    1,
			ForecastProb: types.Float64(0.6),
			AwayMid:      types.Float64(0.30),
		},
	}

	timeline, _ := aligner.Build("evt-1", rows, nil)

	if len(timeline.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(timeline.Points))
	}
	if timeline.Points[0].MarketMid != 0.30 {
		t.Errorf("away quote must not be inverted: expected 0.30, got %g", timeline.Points[0].MarketMid)
	}
}

func TestBuild_DivergentSidesDiagnostic(t *testing.T) {
	aligner := newTestAligner(0, 0)

	tests := []struct {
		name    string
		homeMid float64
		awayMid float64
		want    int
	}{
		// 0.70 + 0.30 = 1.0, |0.70-0.30| = 0.40: unconverted away quote.
		{name: "complementary-mids-flagged", homeMid: 0.70, awayMid: 0.30, want: 1},
		// Sides agree: converted correctly.
		{name: "agreeing-mids-clean", homeMid: 0.70, awayMid: 0.71, want: 0},
		// Sides disagree but do not sum to 1: noisy, not the conversion bug.
		{name: "disagreeing-mids-not-complementary", homeMid: 0.70, awayMid: 0.50, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := []types.SnapshotRow{
				{
					Timestamp:    1,
					ForecastProb: types.Float64(0.6),
					HomeMid:      types.Float64(tt.homeMid),
					AwayMid:      types.Float64(tt.awayMid),
				},
			}
			_, stats := aligner.Build("evt-1", rows, nil)
			if stats.DivergentSides != tt.want {
				t.Errorf("expected %d divergent-side flags, got %d", tt.want, stats.DivergentSides)
			}
		})
	}
}

func TestBuild_CollapsedQuoteDiagnostic(t *testing.T) {
	aligner := newTestAligner(0, 0)

	rows := []types.SnapshotRow{
		{
			Timestamp:    1,
			ForecastProb: types.Float64(0.6),
			HomeMid:      types.Float64(0.50),
			HomeBid:      types.Float64(0.50),
			HomeAsk:      types.Float64(0.50),
		},
		{
			Timestamp:    2,
			ForecastProb: types.Float64(0.6),
			HomeMid:      types.Float64(0.50),
			HomeBid:      types.Float64(0.49),
			HomeAsk:      types.Float64(0.51),
		},
	}

	timeline, stats := aligner.Build("evt-1", rows, nil)

	if stats.CollapsedQuotes != 1 {
		t.Errorf("expected 1 collapsed quote, got %d", stats.CollapsedQuotes)
	}
	// Collapsed rows are surfaced, not dropped.
	if len(timeline.Points) != 2 {
		t.Errorf("expected collapsed row to survive, got %d points", len(timeline.Points))
	}
}

func TestBuild_DropsMissingFields(t *testing.T) {
	aligner := newTestAligner(0, 0)

	rows := []types.SnapshotRow{
		{Timestamp: 1, HomeMid: types.Float64(0.5)},                // no forecast
		{Timestamp: 2, ForecastProb: types.Float64(0.6)},           // no mid on either side
		{Timestamp: 3, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)}, // survives
	}

	timeline, stats := aligner.Build("evt-1", rows, nil)

	if stats.DroppedMissingForecast != 1 {
		t.Errorf("expected 1 missing-forecast drop, got %d", stats.DroppedMissingForecast)
	}
	if stats.DroppedMissingMid != 1 {
		t.Errorf("expected 1 missing-mid drop, got %d", stats.DroppedMissingMid)
	}
	if len(timeline.Points) != 1 || timeline.Points[0].Timestamp != 3 {
		t.Errorf("expected only timestamp 3 to survive, got %+v", timeline.Points)
	}
}

func TestBuild_ExclusionWindow(t *testing.T) {
	aligner := newTestAligner(300, 300)

	meta := &types.EventMeta{
		EventID:         "evt-1",
		EventStart:      types.Int64(1000),
		DurationSeconds: types.Int64(7200),
		Winner:          "home",
	}

	rows := []types.SnapshotRow{
		{Timestamp: 1100, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)}, // first 300s
		{Timestamp: 1300, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)}, // boundary, kept
		{Timestamp: 4000, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)}, // mid-game
		{Timestamp: 7900, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)}, // boundary, kept
		{Timestamp: 8100, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)}, // last 300s
	}

	timeline, stats := aligner.Build("evt-1", rows, meta)

	if stats.DroppedOutsideWindow != 2 {
		t.Errorf("expected 2 outside-window drops, got %d", stats.DroppedOutsideWindow)
	}
	if len(timeline.Points) != 3 {
		t.Fatalf("expected 3 surviving points, got %d", len(timeline.Points))
	}
	if timeline.Points[0].Timestamp != 1300 || timeline.Points[2].Timestamp != 7900 {
		t.Errorf("unexpected surviving timestamps: %+v", timeline.Points)
	}
	if timeline.RealizedOutcome != types.OutcomeHome {
		t.Errorf("expected realized outcome home, got %q", timeline.RealizedOutcome)
	}
}

func TestBuild_NoWindowWithoutMetadata(t *testing.T) {
	aligner := newTestAligner(300, 300)

	rows := []types.SnapshotRow{
		{Timestamp: 10, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)},
	}

	timeline, stats := aligner.Build("evt-1", rows, nil)

	if stats.DroppedOutsideWindow != 0 {
		t.Errorf("expected no window drops without metadata, got %d", stats.DroppedOutsideWindow)
	}
	if len(timeline.Points) != 1 {
		t.Errorf("expected 1 point, got %d", len(timeline.Points))
	}
}

func TestBuild_SortsByTimestamp(t *testing.T) {
	aligner := newTestAligner(0, 0)

	rows := []types.SnapshotRow{
		{Timestamp: 30, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)},
		{Timestamp: 10, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)},
		{Timestamp: 20, ForecastProb: types.Float64(0.6), HomeMid: types.Float64(0.5)},
	}

	timeline, _ := aligner.Build("evt-1", rows, nil)

	if len(timeline.Points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(timeline.Points))
	}
	for i := 1; i < len(timeline.Points); i++ {
		if timeline.Points[i].Timestamp < timeline.Points[i-1].Timestamp {
			t.Fatalf("points not sorted at index %d: %+v", i, timeline.Points)
		}
	}
}

func TestBuild_EmptyTimelineNotAnError(t *testing.T) {
	aligner := newTestAligner(0, 0)

	timeline, stats := aligner.Build("evt-empty", nil, nil)

	if timeline == nil {
		t.Fatal("expected non-nil timeline")
	}
	if !timeline.Empty() {
		t.Error("expected empty timeline")
	}
	if stats.TotalRows != 0 || stats.AlignedPoints != 0 {
		t.Errorf("unexpected stats for empty input: %+v", stats)
	}
}
