package monitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
)

type stubRegistry []string

func (r stubRegistry) Get(string) (port.ExchangeGateway, bool) { return nil, false }
func (r stubRegistry) Venues() []string                        { return r }

type recordingSink struct {
	titles []string
	lines  [][]string
}

func (s *recordingSink) WriteBoard(ts time.Time, title string, lines []string) error {
	s.titles = append(s.titles, title)
	s.lines = append(s.lines, lines)
	return nil
}

func (s *recordingSink) NewLine() error { return nil }

func newTestCache() *service.MarketDataCache {
	cache := service.NewMarketDataCache(stubRegistry{"binance", "bitget", "okx"}, time.Second)
	cache.ApplyFundingRates("binance", []model.FundingRate{
		{Symbol: "BTCUSDT", Rate: 0.0001, IntervalHours: 8},
		{Symbol: "ETHUSDT", Rate: 0.0003, IntervalHours: 8},
	})
	cache.ApplyFundingRates("okx", []model.FundingRate{
		{Symbol: "BTC-USDT-SWAP", Rate: -0.0002, IntervalHours: 8},
		{Symbol: "ETH-USDT-SWAP", Rate: 0.0003, IntervalHours: 8},
	})
	cache.ApplyFundingRates("bitget", []model.FundingRate{
		{Symbol: "BTCUSDT", Rate: 0.0001, IntervalHours: 4},
	})
	return cache
}

func TestRankDiffs(t *testing.T) {
	rows := RankDiffs(newTestCache(), nil, 0)
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	if rows[0].VenueA != "binance" || rows[0].VenueB != "okx" || rows[0].Symbol != "BTCUSDT" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if rows[1].VenueA != "bitget" || rows[1].IntervalA != 4 {
		t.Errorf("rows[1] = %+v", rows[1])
	}
	for _, r := range rows {
		if r.Symbol == "ETHUSDT" {
			t.Errorf("zero difference must be ignored: %+v", r)
		}
	}

	if top := RankDiffs(newTestCache(), nil, 1); len(top) != 1 {
		t.Errorf("topN not applied: %d rows", len(top))
	}
	if none := RankDiffs(newTestCache(), newSymbolFilter([]string{"eth-usdt"}), 0); len(none) != 0 {
		t.Errorf("filter not applied: %+v", none)
	}
}

func TestTopRates(t *testing.T) {
	cache := newTestCache()
	top := TopRates(cache.Snapshot("okx"), nil, 1)
	if len(top) != 1 || top[0].Symbol != "ETHUSDT" {
		t.Errorf("top = %+v, want ETHUSDT", top)
	}
	if TopRates(nil, nil, 5) != nil {
		t.Errorf("nil snapshot should give nil")
	}
}

func TestServiceTick(t *testing.T) {
	sink := &recordingSink{}
	svc := NewService(ServiceDeps{Cache: newTestCache(), Sink: sink, TopN: 5})

	b := svc.Tick(context.Background(), time.Now())
	if len(b.Diffs) != 2 {
		t.Fatalf("diffs = %d, want 2", len(b.Diffs))
	}
	if svc.Last() != b {
		t.Errorf("Last() not updated")
	}
	if len(sink.titles) != 1 {
		t.Fatalf("sink writes = %d, want 1", len(sink.titles))
	}
	joined := strings.Join(sink.lines[0], "\n")
	if !strings.Contains(joined, "binance/okx") || !strings.Contains(joined, "OKX:") {
		t.Errorf("board output = %q", joined)
	}
}
