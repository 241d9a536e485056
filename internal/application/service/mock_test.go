package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

type mockGateway struct {
	name string

	mu        sync.Mutex
	rates     []model.FundingRate
	prices    []model.Price
	limits    []model.InstrumentLimit
	positions []model.Position
	bills     []model.Bill

	ratesErr     error
	positionsErr error
	leverageErr  error
	placeOrder   func(ctx context.Context, req model.OrderRequest) (string, error)

	klines     map[string][]model.Kline // symbol/interval
	klineCalls int

	orders      []model.OrderRequest
	leverageSet []int
	cancels     int
}

func newMockGateway(name string) *mockGateway {
	return &mockGateway{name: name}
}

func (m *mockGateway) Name() string { return m.name }

func (m *mockGateway) GetFundingRates(ctx context.Context) ([]model.FundingRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ratesErr != nil {
		return nil, m.ratesErr
	}
	return append([]model.FundingRate(nil), m.rates...), nil
}

func (m *mockGateway) GetPrices(ctx context.Context, symbol string) ([]model.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Price
	for _, p := range m.prices {
		if symbol == "" || p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockGateway) GetInstrumentLimits(ctx context.Context) ([]model.InstrumentLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.InstrumentLimit(nil), m.limits...), nil
}

func (m *mockGateway) GetPositions(ctx context.Context) ([]model.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.positionsErr != nil {
		return nil, m.positionsErr
	}
	return append([]model.Position(nil), m.positions...), nil
}

func (m *mockGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leverageSet = append(m.leverageSet, leverage)
	return m.leverageErr
}

func (m *mockGateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	m.mu.Lock()
	m.orders = append(m.orders, req)
	fn := m.placeOrder
	n := len(m.orders)
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return m.name + "-order-" + strconv.Itoa(n), nil
}

func (m *mockGateway) GetIncome(ctx context.Context, since time.Time) ([]model.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Bill(nil), m.bills...), nil
}

func (m *mockGateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.klineCalls++
	return append([]model.Kline(nil), m.klines[symbol+"/"+interval]...), nil
}

func (m *mockGateway) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type mockRegistry map[string]port.ExchangeGateway

func newMockRegistry(gws ...*mockGateway) mockRegistry {
	r := mockRegistry{}
	for _, g := range gws {
		r[g.name] = g
	}
	return r
}

func (r mockRegistry) Get(venue string) (port.ExchangeGateway, bool) {
	g, ok := r[venue]
	return g, ok
}

func (r mockRegistry) Venues() []string {
	out := make([]string, 0, len(r))
	for v := range r {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

// btcVenue 一个带 BTCUSDT 行情的交易所
func btcVenue(name string, rate, price float64) *mockGateway {
	g := newMockGateway(name)
	g.rates = []model.FundingRate{{Venue: name, Symbol: "BTCUSDT", Rate: rate, IntervalHours: 8}}
	g.prices = []model.Price{{Venue: name, Symbol: "BTCUSDT", LastPrice: price, DecimalScale: 1}}
	g.limits = []model.InstrumentLimit{{Venue: name, Symbol: "BTCUSDT", MinQty: 0.001, StepSize: 0.001}}
	return g
}
