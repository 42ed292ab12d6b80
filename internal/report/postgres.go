package report

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quantfold/probedge/internal/grid"
	"github.com/quantfold/probedge/internal/search"
)

// Run history schema, applied idempotently at connect time.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id               UUID PRIMARY KEY,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL,
	partial          BOOLEAN NOT NULL,
	event_errors     BIGINT NOT NULL,
	winner_entry     DOUBLE PRECISION,
	winner_exit      DOUBLE PRECISION,
	selection_method TEXT,
	top_n            INTEGER
);

CREATE TABLE IF NOT EXISTS combination_metrics (
	run_id           UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	entry_threshold  DOUBLE PRECISION NOT NULL,
	exit_threshold   DOUBLE PRECISION NOT NULL,
	split            TEXT NOT NULL,
	net_profit       DOUBLE PRECISION NOT NULL,
	gross_profit     DOUBLE PRECISION NOT NULL,
	total_fees       DOUBLE PRECISION NOT NULL,
	total_slippage   DOUBLE PRECISION NOT NULL,
	trade_count      INTEGER NOT NULL,
	win_rate         DOUBLE PRECISION NOT NULL,
	profit_factor    DOUBLE PRECISION NOT NULL,
	max_drawdown     DOUBLE PRECISION NOT NULL,
	avg_hold_seconds DOUBLE PRECISION NOT NULL,
	events_processed INTEGER NOT NULL,
	events_skipped   INTEGER NOT NULL,
	is_valid         BOOLEAN NOT NULL,
	PRIMARY KEY (run_id, entry_threshold, exit_threshold, split)
);

CREATE TABLE IF NOT EXISTS split_assignments (
	run_id   UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	split    TEXT NOT NULL,
	event_id TEXT NOT NULL,
	PRIMARY KEY (run_id, split, event_id)
);
`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore connects, verifies the connection, and applies the
// schema.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg.Logger.Info("postgres-report-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreRun writes the run, its metric rows, and the split assignment
// in one transaction.
func (p *PostgresStore) StoreRun(ctx context.Context, result *search.RunResult) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("postgres").Inc()
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var winnerEntry, winnerExit sql.NullFloat64
	var method sql.NullString
	var topN sql.NullInt64
	if result.Selection != nil {
		winnerEntry = sql.NullFloat64{Float64: result.Selection.Combination.Entry, Valid: true}
		winnerExit = sql.NullFloat64{Float64: result.Selection.Combination.Exit, Valid: true}
		method = sql.NullString{String: result.Selection.Method, Valid: true}
		topN = sql.NullInt64{Int64: int64(result.Selection.TopN), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, finished_at, partial, event_errors,
			winner_entry, winner_exit, selection_method, top_n
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		result.RunID,
		result.StartedAt,
		result.FinishedAt,
		result.Partial,
		result.EventErrors,
		winnerEntry,
		winnerExit,
		method,
		topN,
	)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("postgres").Inc()
		return fmt.Errorf("insert run: %w", err)
	}

	for _, m := range result.Metrics {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO combination_metrics (
				run_id, entry_threshold, exit_threshold, split,
				net_profit, gross_profit, total_fees, total_slippage,
				trade_count, win_rate, profit_factor, max_drawdown,
				avg_hold_seconds, events_processed, events_skipped, is_valid
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			result.RunID,
			m.Combination.Entry,
			m.Combination.Exit,
			string(m.Split),
			m.NetProfit,
			m.GrossProfit,
			m.TotalFees,
			m.TotalSlippage,
			m.TradeCount,
			m.WinRate,
			m.ProfitFactor,
			m.MaxDrawdown,
			m.AvgHoldSeconds,
			m.EventsProcessed,
			m.EventsSkipped,
			m.IsValid,
		)
		if err != nil {
			StoreErrorsTotal.WithLabelValues("postgres").Inc()
			return fmt.Errorf("insert combination metrics: %w", err)
		}
	}

	for _, split := range grid.AllSplits {
		for _, eventID := range result.Assignment.Events(split) {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO split_assignments (run_id, split, event_id)
				VALUES ($1, $2, $3)`,
				result.RunID, string(split), eventID,
			)
			if err != nil {
				StoreErrorsTotal.WithLabelValues("postgres").Inc()
				return fmt.Errorf("insert split assignment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		StoreErrorsTotal.WithLabelValues("postgres").Inc()
		return fmt.Errorf("commit transaction: %w", err)
	}

	RunsStoredTotal.WithLabelValues("postgres").Inc()
	p.logger.Debug("run-stored",
		zap.String("run-id", result.RunID),
		zap.Int("metric-rows", len(result.Metrics)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-report-store")
	return p.db.Close()
}
