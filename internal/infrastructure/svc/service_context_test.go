package svc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/storage"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "fundarb-test"
	cfg.Market.RefreshInterval = config.Duration{Duration: time.Minute}
	cfg.Market.RefreshTimeout = config.Duration{Duration: 3 * time.Second}
	cfg.Execution.LegTimeout = config.Duration{Duration: 3 * time.Second}
	cfg.Execution.CloseOrderType = "MARKET"
	cfg.Exchanges = map[string]config.ExchangeConfig{
		"binance": {Enabled: true, RestURL: "https://fapi.binance.com"},
		"bybit":   {Enabled: true, RestURL: "https://api.bybit.com", WsURL: "wss://stream.bybit.com/v5/public/linear"},
	}
	cfg.Symbols.List = []string{"BTCUSDT"}
	return cfg
}

func taskNames(sc *ServiceContext) map[string]bool {
	out := map[string]bool{}
	for _, t := range sc.Tasks() {
		out[t.Name] = true
	}
	return out
}

func TestNewMinimal(t *testing.T) {
	sc, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sc.Close()

	if _, ok := sc.Journal.(storage.Noop); !ok {
		t.Errorf("expected noop journal, got %T", sc.Journal)
	}
	names := taskNames(sc)
	for _, want := range []string{"market-refresher", "risk-monitor", "funding-streams"} {
		if !names[want] {
			t.Errorf("task %s missing: %v", want, names)
		}
	}
	if names["http"] || names["board"] || names["telegram-bot"] {
		t.Errorf("disabled tasks present: %v", names)
	}
}

func TestNewWithSQLiteAndSurfaces(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Storage.SQLite.Enabled = true
	cfg.Storage.SQLite.Path = filepath.Join(dir, "journal.db")
	cfg.Board.Enabled = true
	cfg.Bill.Enabled = true
	cfg.Volatility.Enabled = true
	cfg.Volatility.Venue = "binance"
	cfg.Volatility.Thresholds = map[string]float64{"5m": 0.1}
	cfg.HTTP.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Telegram.Enabled = true
	cfg.Telegram.Commands = true
	cfg.Telegram.Token = "t"
	cfg.Telegram.ChatID = 1
	cfg.Telegram.APIURL = "http://127.0.0.1:0"

	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := os.Stat(cfg.Storage.SQLite.Path); err != nil {
		t.Errorf("sqlite file not created: %v", err)
	}
	names := taskNames(sc)
	for _, want := range []string{"board", "bill-reporter", "volatility-monitor", "http", "telegram-bot"} {
		if !names[want] {
			t.Errorf("task %s missing: %v", want, names)
		}
	}
	if err := sc.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestNewVolatilityNeedsKlineVenue(t *testing.T) {
	cfg := testConfig()
	cfg.Volatility.Enabled = true
	cfg.Volatility.Venue = "bybit"
	cfg.Volatility.Thresholds = map[string]float64{"5m": 0.1}
	_, err := New(context.Background(), cfg)
	if !errors.Is(err, ErrGatewayInitFailed) {
		t.Fatalf("expected ErrGatewayInitFailed, got %v", err)
	}
}

func TestNewUnknownVenue(t *testing.T) {
	cfg := testConfig()
	cfg.Exchanges["kraken"] = config.ExchangeConfig{Enabled: true, RestURL: "https://example.com"}
	_, err := New(context.Background(), cfg)
	if !errors.Is(err, ErrGatewayInitFailed) {
		t.Fatalf("expected ErrGatewayInitFailed, got %v", err)
	}
}
