package service

import (
	"testing"

	"fundarb/internal/domain/model"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		raw   string
		venue string
		want  string
	}{
		{"BTC-USDT-SWAP", model.VenueOKX, "BTCUSDT"},
		{"eth-usdt-swap", model.VenueOKX, "ETHUSDT"},
		{"BTCUSDT_UMCBL", model.VenueBitget, "BTCUSDT"},
		{"btcusdt", model.VenueBinance, "BTCUSDT"},
		{" 1000PEPEUSDT ", model.VenueBybit, "1000PEPEUSDT"},
		{"BTC", model.VenueBinance, "BTCUSDT"},
		{"ETH/USDC", "", "ETHUSDC"},
		{"BTCUSD", "", "BTCUSD"},
		{"", model.VenueOKX, ""},
		{"-SWAP", model.VenueOKX, ""},
		{"/ \tSOL", "", "SOLUSDT"},
		{"-\u00a0BTC", model.VenueBinance, "BTCUSDT"},
		{"_\u3000ETH", model.VenueBitget, "ETHUSDT"},
		{"BTC-USDT-SWAP\t", model.VenueOKX, "BTCUSDT"},
	}

	for _, tt := range tests {
		if got := NormalizeSymbol(tt.raw, tt.venue); got != tt.want {
			t.Errorf("NormalizeSymbol(%q, %q) = %q, want %q", tt.raw, tt.venue, got, tt.want)
		}
	}
}

func TestNormalizeSymbolIdempotentAndTotal(t *testing.T) {
	inputs := []string{
		"", " ", "-", "_", "///", "USDT", "USD", "SWAP", "-SWAP", "a-b-c",
		"BTC-USDT-SWAP-SWAP", "A_UMCBL_UMCBL", "💥", "btc usdt", "X:Y", "ÿ-usdt",
		"BTCUSDT", "BTC-USDT-SWAP", "ethusdc", "1000SHIB-USDT-SWAP",
		"/ \tSOL", "-\u00a0BTC", "_\u3000ETH", "BTC-USDT-SWAP\n", "\tbtc\u2003usdt\r",
	}
	venues := []string{"", model.VenueBinance, model.VenueOKX, model.VenueBitget, model.VenueBybit, "unknown"}

	for _, venue := range venues {
		for _, raw := range inputs {
			once := NormalizeSymbol(raw, venue)
			twice := NormalizeSymbol(once, venue)
			if once != twice {
				t.Errorf("not idempotent for %q on %q: %q -> %q", raw, venue, once, twice)
			}
			// 归一化结果在所有交易所之间一致
			if other := NormalizeSymbol(once, model.VenueOKX); other != once {
				t.Errorf("venue dependent result for %q: %q vs %q", raw, once, other)
			}
		}
	}
}

func TestToVenueSymbol(t *testing.T) {
	if got := ToVenueSymbol("BTCUSDT", model.VenueOKX); got != "BTC-USDT-SWAP" {
		t.Errorf("okx symbol = %q", got)
	}
	if got := ToVenueSymbol("BTC-USDT-SWAP", model.VenueBinance); got != "BTCUSDT" {
		t.Errorf("binance symbol = %q", got)
	}
	if got := NormalizeSymbol(ToVenueSymbol("ETHUSDC", model.VenueOKX), model.VenueOKX); got != "ETHUSDC" {
		t.Errorf("round trip = %q", got)
	}
	if got := BaseAsset("BTC-USDT-SWAP"); got != "BTC" {
		t.Errorf("BaseAsset = %q", got)
	}
}
