package factory

import (
	"testing"
	"time"

	"fundarb/internal/infrastructure/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Market.RefreshTimeout = config.Duration{Duration: 3 * time.Second}
	cfg.Symbols.List = []string{"BTCUSDT"}
	cfg.Exchanges = map[string]config.ExchangeConfig{
		"binance": {Enabled: true, RestURL: "https://fapi.binance.com", WsURL: "wss://fstream.binance.com"},
		"okx":     {Enabled: true, RestURL: "https://www.okx.com", APIKey: "k", APISecret: "s", Passphrase: "p"},
		"bybit":   {Enabled: false},
	}
	return cfg
}

func TestBuildGateways(t *testing.T) {
	reg, err := BuildGateways(testConfig())
	if err != nil {
		t.Fatalf("build gateways: %v", err)
	}
	venues := reg.Venues()
	if len(venues) != 2 || venues[0] != "binance" || venues[1] != "okx" {
		t.Fatalf("unexpected venues %v", venues)
	}
	if gw, ok := reg.Get("okx"); !ok || gw.Name() != "okx" {
		t.Errorf("okx gateway missing")
	}
}

func TestBuildGatewaysUnknownVenue(t *testing.T) {
	cfg := testConfig()
	cfg.Exchanges["kraken"] = config.ExchangeConfig{Enabled: true, RestURL: "https://example.com"}
	if _, err := BuildGateways(cfg); err == nil {
		t.Fatal("expected error for unregistered venue")
	}
}

func TestNewFundingFeedsSkipsWithoutWsURL(t *testing.T) {
	feeds := NewFundingFeeds(testConfig())
	if len(feeds) != 1 || feeds[0].Name() != "binance" {
		t.Fatalf("expected only binance feed, got %d", len(feeds))
	}
}

func TestGatewayConfigUsesRefreshTimeout(t *testing.T) {
	c := GatewayConfig(testConfig(), "okx")
	if c.Timeout != 3*time.Second || c.Passphrase != "p" || !c.HasCredentials() {
		t.Errorf("unexpected gateway config %+v", c)
	}
}
