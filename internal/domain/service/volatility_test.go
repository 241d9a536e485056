package service

import (
	"math"
	"testing"
	"time"

	"fundarb/internal/domain/model"
)

func kline(open, close float64) model.Kline {
	return model.Kline{Symbol: "SOLUSDT", Interval: "5m", Open: open, High: math.Max(open, close), Low: math.Min(open, close), Close: close}
}

func TestKlineChange(t *testing.T) {
	change, ok := KlineChange(kline(100, 104), kline(104, 112))
	if !ok || math.Abs(change-0.12) > 1e-9 {
		t.Fatalf("change = %v/%v, want 0.12", change, ok)
	}
	if _, ok := KlineChange(kline(0, 1), kline(1, 2)); ok {
		t.Errorf("zero open should be rejected")
	}
}

func TestEvaluateVolatility(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a, ok := EvaluateVolatility("binance", "SOLUSDT", "5m", []model.Kline{kline(100, 95), kline(95, 85)}, 0.1, now)
	if !ok {
		t.Fatal("15% drop should alert over a 10% threshold")
	}
	if a.Kind != model.AlertVolatility || a.Window != "5m" || a.Value > -0.149 || a.Value < -0.151 {
		t.Errorf("alert = %+v", a)
	}
	if a.Key() != VolatilityAlertKey("binance", "SOLUSDT", "5m") {
		t.Errorf("key %q does not match precomputed key", a.Key())
	}
	if a.Key() == VolatilityAlertKey("binance", "SOLUSDT", "15m") {
		t.Errorf("intervals must not share a cooldown key")
	}

	if _, ok := EvaluateVolatility("binance", "SOLUSDT", "5m", []model.Kline{kline(100, 105), kline(105, 109)}, 0.1, now); ok {
		t.Errorf("9%% move should not alert")
	}
	if _, ok := EvaluateVolatility("binance", "SOLUSDT", "5m", []model.Kline{kline(100, 200)}, 0.1, now); ok {
		t.Errorf("a single kline is not enough")
	}
}
