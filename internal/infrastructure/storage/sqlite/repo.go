package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

// Repo 本地观测记录：资金费率快照、信号、告警
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  venue TEXT NOT NULL,
  symbol TEXT NOT NULL,
  rate REAL NOT NULL,
  interval_hours INTEGER NOT NULL,
  next_settlement_ms INTEGER NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_funding_venue_symbol ON funding_snapshots(venue, symbol);
CREATE INDEX IF NOT EXISTS idx_funding_ts ON funding_snapshots(ts_ms);

CREATE TABLE IF NOT EXISTS signals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  symbol TEXT NOT NULL,
  long_venue TEXT NOT NULL,
  short_venue TEXT NOT NULL,
  edge REAL NOT NULL,
  flipped INTEGER NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_ts ON signals(ts_ms);
CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol);

CREATE TABLE IF NOT EXISTS alerts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  kind TEXT NOT NULL,
  symbol TEXT NOT NULL,
  venues TEXT NOT NULL,
  value REAL NOT NULL,
  threshold REAL NOT NULL,
  message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts_ms);
CREATE INDEX IF NOT EXISTS idx_alerts_kind ON alerts(kind);
`)
	return err
}

// RecordFundingSnapshot 一次刷新写入一个事务
func (r *Repo) RecordFundingSnapshot(ctx context.Context, venue string, rates []model.FundingRate) error {
	if len(rates) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO funding_snapshots(venue, symbol, rate, interval_hours, next_settlement_ms, ts_ms)
		VALUES(?, ?, ?, ?, ?, strftime('%s','now') * 1000)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, fr := range rates {
		var next int64
		if !fr.NextSettlement.IsZero() {
			next = fr.NextSettlement.UnixMilli()
		}
		if _, err := stmt.ExecContext(ctx, venue, fr.Symbol, fr.Rate, fr.IntervalHours, next); err != nil {
			return fmt.Errorf("insert funding %s %s: %w", venue, fr.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) RecordSignal(ctx context.Context, sig model.Signal) error {
	flipped := 0
	if sig.Flipped {
		flipped = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signals(ts_ms, symbol, long_venue, short_venue, edge, flipped, payload)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		sig.Timestamp.UnixMilli(), sig.Symbol, sig.LongVenue, sig.ShortVenue, sig.Edge, flipped, storage.Payload(sig))
	return err
}

func (r *Repo) RecordAlert(ctx context.Context, a model.Alert) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts(ts_ms, kind, symbol, venues, value, threshold, message)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		a.Timestamp.UnixMilli(), string(a.Kind), a.Symbol, strings.Join(a.Venues, ","), a.Value, a.Threshold, a.Message)
	return err
}

// RecentSignals 按时间倒序
func (r *Repo) RecentSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM signals ORDER BY ts_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sig model.Signal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			continue
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// CountAlerts 按类型统计告警数
func (r *Repo) CountAlerts(ctx context.Context, kind model.AlertKind) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE kind = ?`, string(kind)).Scan(&n)
	return n, err
}

// LatestRate 某交易所某合约最近一次记录的费率
func (r *Repo) LatestRate(ctx context.Context, venue, symbol string) (float64, error) {
	var rate float64
	err := r.db.QueryRowContext(ctx, `
		SELECT rate FROM funding_snapshots WHERE venue = ? AND symbol = ?
		ORDER BY id DESC LIMIT 1`, venue, symbol).Scan(&rate)
	return rate, err
}

var (
	_ port.Journal         = (*Repo)(nil)
	_ storage.SignalReader = (*Repo)(nil)
)
