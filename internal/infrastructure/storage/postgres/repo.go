package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS funding_snapshots (
  id BIGSERIAL PRIMARY KEY,
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  rate DOUBLE PRECISION NOT NULL,
  interval_hours INTEGER NOT NULL,
  next_settlement TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_funding_venue_symbol ON funding_snapshots(venue, symbol);

CREATE TABLE IF NOT EXISTS signals (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  symbol TEXT NOT NULL,
  long_venue TEXT NOT NULL,
  short_venue TEXT NOT NULL,
  edge DOUBLE PRECISION NOT NULL,
  flipped BOOLEAN NOT NULL,
  payload JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts_ms);

CREATE TABLE IF NOT EXISTS alerts (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  kind TEXT NOT NULL,
  symbol TEXT NOT NULL,
  venues TEXT NOT NULL,
  value DOUBLE PRECISION NOT NULL,
  threshold DOUBLE PRECISION NOT NULL,
  message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts_ms);
`)
	return err
}

func (r *Repo) RecordFundingSnapshot(ctx context.Context, venue string, rates []model.FundingRate) error {
	if len(rates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, fr := range rates {
		var next sql.NullTime
		if !fr.NextSettlement.IsZero() {
			next = sql.NullTime{Time: fr.NextSettlement, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO funding_snapshots(venue, symbol, rate, interval_hours, next_settlement)
			VALUES($1, $2, $3, $4, $5)`,
			venue, fr.Symbol, fr.Rate, fr.IntervalHours, next); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) RecordSignal(ctx context.Context, sig model.Signal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signals(ts_ms, symbol, long_venue, short_venue, edge, flipped, payload)
		VALUES($1, $2, $3, $4, $5, $6, $7)`,
		sig.Timestamp.UnixMilli(), sig.Symbol, sig.LongVenue, sig.ShortVenue, sig.Edge, sig.Flipped, storage.Payload(sig))
	return err
}

func (r *Repo) RecordAlert(ctx context.Context, a model.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts(ts_ms, kind, symbol, venues, value, threshold, message)
		VALUES($1, $2, $3, $4, $5, $6, $7)`,
		a.Timestamp.UnixMilli(), string(a.Kind), a.Symbol, strings.Join(a.Venues, ","), a.Value, a.Threshold, a.Message)
	return err
}

func (r *Repo) RecentSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM signals ORDER BY ts_ms DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sig model.Signal
		if err := json.Unmarshal(payload, &sig); err != nil {
			continue
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

var (
	_ port.Journal         = (*Repo)(nil)
	_ storage.SignalReader = (*Repo)(nil)
)
