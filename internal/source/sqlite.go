package source

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/quantfold/probedge/pkg/types"
)

// sqliteSchema is applied idempotently on open so research fixtures can
// be built against an empty file.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
    event_id         TEXT PRIMARY KEY,
    event_start      INTEGER,
    duration_seconds INTEGER,
    winner           TEXT
);

CREATE TABLE IF NOT EXISTS snapshots (
    event_id      TEXT    NOT NULL,
    timestamp     INTEGER NOT NULL,
    forecast_prob REAL,
    home_mid      REAL,
    home_bid      REAL,
    home_ask      REAL,
    away_mid      REAL,
    away_bid      REAL,
    away_ask      REAL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_event ON snapshots(event_id, timestamp);
`

// SQLiteSource reads snapshot rows from a SQLite database (pure Go
// driver, no CGo).
type SQLiteSource struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSource opens (or creates) the snapshot database at path.
func NewSQLiteSource(path string, logger *zap.Logger) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db %s: %w: %w", path, types.ErrSourceUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping snapshot db %s: %w: %w", path, types.ErrSourceUnavailable, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply snapshot schema: %w", err)
	}

	logger.Info("sqlite-source-opened", zap.String("path", path))

	return &SQLiteSource{db: db, logger: logger}, nil
}

// ListEvents returns the sorted ids of all events carrying snapshots.
func (s *SQLiteSource) ListEvents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT event_id FROM snapshots ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Rows returns one event's snapshot rows in timestamp order plus its
// metadata when the events table has a matching entry.
func (s *SQLiteSource) Rows(ctx context.Context, eventID string) ([]types.SnapshotRow, *types.EventMeta, error) {
	meta, err := s.eventMeta(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, forecast_prob, home_mid, home_bid, home_ask,
		        away_mid, away_bid, away_ask
		   FROM snapshots
		  WHERE event_id = ?
		  ORDER BY timestamp`, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("query rows for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var out []types.SnapshotRow
	for rows.Next() {
		var row types.SnapshotRow
		var forecast, hMid, hBid, hAsk, aMid, aBid, aAsk sql.NullFloat64
		if err := rows.Scan(&row.Timestamp, &forecast, &hMid, &hBid, &hAsk, &aMid, &aBid, &aAsk); err != nil {
			return nil, nil, fmt.Errorf("scan row for event %s: %w", eventID, err)
		}
		row.ForecastProb = nullableFloat(forecast)
		row.HomeMid = nullableFloat(hMid)
		row.HomeBid = nullableFloat(hBid)
		row.HomeAsk = nullableFloat(hAsk)
		row.AwayMid = nullableFloat(aMid)
		row.AwayBid = nullableFloat(aBid)
		row.AwayAsk = nullableFloat(aAsk)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows for event %s: %w", eventID, err)
	}
	if len(out) == 0 {
		return nil, nil, fmt.Errorf("event %s: %w", eventID, types.ErrTimelineNotFound)
	}

	RowsReadTotal.WithLabelValues("sqlite").Add(float64(len(out)))

	return out, meta, nil
}

func (s *SQLiteSource) eventMeta(ctx context.Context, eventID string) (*types.EventMeta, error) {
	var (
		start    sql.NullInt64
		duration sql.NullInt64
		winner   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT event_start, duration_seconds, winner FROM events WHERE event_id = ?`,
		eventID).Scan(&start, &duration, &winner)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query meta for event %s: %w", eventID, err)
	}

	meta := &types.EventMeta{EventID: eventID, Winner: types.OutcomeUnknown}
	if start.Valid {
		meta.EventStart = &start.Int64
	}
	if duration.Valid {
		meta.DurationSeconds = &duration.Int64
	}
	if winner.Valid && winner.String != "" {
		meta.Winner = types.Outcome(winner.String)
	}
	return meta, nil
}

// Close closes the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
