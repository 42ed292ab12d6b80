package types

// SnapshotRow is one raw per-event observation as delivered by a
// snapshot source, before alignment. Either side's quote may be missing
// entirely or carry only a mid. Away-denominated values are assumed to
// be already expressed in home-probability space by the upstream
// pipeline; the aligner never inverts them.
type SnapshotRow struct {
	Timestamp    int64    `json:"timestamp"`
	ForecastProb *float64 `json:"forecast_prob,omitempty"`
	HomeMid      *float64 `json:"home_mid,omitempty"`
	HomeBid      *float64 `json:"home_bid,omitempty"`
	HomeAsk      *float64 `json:"home_ask,omitempty"`
	AwayMid      *float64 `json:"away_mid,omitempty"`
	AwayBid      *float64 `json:"away_bid,omitempty"`
	AwayAsk      *float64 `json:"away_ask,omitempty"`
}

// EventMeta carries per-event metadata when the source has it. Winner is
// OutcomeUnknown for unresolved or unlabeled events.
type EventMeta struct {
	EventID         string  `json:"event_id"`
	EventStart      *int64  `json:"event_start,omitempty"`
	DurationSeconds *int64  `json:"duration_seconds,omitempty"`
	Winner          Outcome `json:"winner,omitempty"`
}
