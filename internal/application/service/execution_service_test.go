package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

func newTestExecution(t *testing.T, gws ...*mockGateway) (*ExecutionService, *recordingNotifier, *SymbolGuard) {
	t.Helper()
	reg := newMockRegistry(gws...)
	cache := NewMarketDataCache(reg, time.Second)
	if err := cache.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll failed: %v", err)
	}
	notifier := &recordingNotifier{}
	guard := NewSymbolGuard()
	signals := NewSignalService(cache, domainservice.SettlementPolicy{}, nil)
	exec := NewExecutionService(reg, cache, signals, guard, notifier, nil, ExecutionConfig{
		PriceOffsetPct: 0.1,
		LegTimeout:     100 * time.Millisecond,
	})
	return exec, notifier, guard
}

func TestOpenBothLegsDone(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	exec, notifier, _ := newTestExecution(t, binance, okx)

	res, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "btc-usdt", MarginPerLeg: 100, Leverage: 5,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("state = %s, want DONE", res.State)
	}
	if res.Decision.LongVenue != "binance" || res.Decision.ShortVenue != "okx" {
		t.Errorf("decision = %+v, want long binance short okx", res.Decision)
	}

	want := []ExecutionState{StateReceived, StateLeverageSet, StatePriced, StateSized, StateSubmitted, StateDone}
	if len(res.Transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", res.Transitions, want)
	}
	for i := range want {
		if res.Transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, res.Transitions[i], want[i])
		}
	}

	if len(binance.orders) != 1 || len(okx.orders) != 1 {
		t.Fatalf("orders = %d/%d, want 1/1", len(binance.orders), len(okx.orders))
	}
	long, short := binance.orders[0], okx.orders[0]
	if long.Side != model.SideBuy || long.PositionSide != model.PositionLong {
		t.Errorf("long order = %+v", long)
	}
	if short.Side != model.SideSell || short.PositionSide != model.PositionShort {
		t.Errorf("short order = %+v", short)
	}
	// 43000 * 0.999 = 42957, 500/42957 -> 0.011
	if long.Price != 42957 || long.Quantity != 0.011 {
		t.Errorf("long price/qty = %v/%v, want 42957/0.011", long.Price, long.Quantity)
	}
	if short.Price != 43043 || short.Quantity != 0.011 {
		t.Errorf("short price/qty = %v/%v, want 43043/0.011", short.Price, short.Quantity)
	}
	if long.ClientOrderID == "" || long.ClientOrderID == short.ClientOrderID {
		t.Errorf("client order ids = %q/%q", long.ClientOrderID, short.ClientOrderID)
	}
	if binance.leverageSet[0] != 5 || okx.leverageSet[0] != 5 {
		t.Errorf("leverage = %v/%v", binance.leverageSet, okx.leverageSet)
	}
	if notifier.count() == 0 {
		t.Errorf("expected a summary notification")
	}
}

func TestOpenLeverageFailureIsBestEffort(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	okx.leverageErr = errors.New("leverage locked")
	exec, _, _ := newTestExecution(t, binance, okx)

	res, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if res.State != StateDone {
		t.Fatalf("state = %s, want DONE", res.State)
	}
	var okxLeg LegResult
	for _, l := range res.Legs {
		if l.Venue == "okx" {
			okxLeg = l
		}
	}
	if okxLeg.LeverageErr == nil {
		t.Errorf("expected leverage error recorded on okx leg")
	}
}

func TestOpenPartialFailureOnTimeout(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	okx.placeOrder = func(ctx context.Context, req model.OrderRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	exec, notifier, _ := newTestExecution(t, binance, okx)

	res, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if !errors.Is(err, ErrPartialExecution) {
		t.Fatalf("err = %v, want ErrPartialExecution", err)
	}
	if res.State != StatePartialFailure {
		t.Fatalf("state = %s, want PARTIAL_FAILURE", res.State)
	}

	var filled, failed int
	for _, l := range res.Legs {
		switch l.Venue {
		case "binance":
			if l.OrderID == "" || l.State != StateDone {
				t.Errorf("binance leg = %+v, want order id", l)
			}
			filled++
		case "okx":
			if l.Err == nil || l.State != StateFailed {
				t.Errorf("okx leg = %+v, want error", l)
			}
			failed++
		}
	}
	if filled != 1 || failed != 1 {
		t.Errorf("filled/failed = %d/%d", filled, failed)
	}
	// 不撤单、不重试
	if binance.orderCount() != 1 || okx.orderCount() != 1 {
		t.Errorf("orders = %d/%d, want 1/1", binance.orderCount(), okx.orderCount())
	}
	if binance.cancels != 0 || okx.cancels != 0 {
		t.Errorf("unexpected cancel")
	}
	if notifier.count() == 0 {
		t.Errorf("expected partial failure notification")
	}
}

func TestOpenBothLegsFail(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	reject := func(ctx context.Context, req model.OrderRequest) (string, error) {
		return "", ErrGatewayRejected
	}
	binance.placeOrder, okx.placeOrder = reject, reject
	exec, _, _ := newTestExecution(t, binance, okx)

	res, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if !errors.Is(err, ErrGatewayRejected) {
		t.Fatalf("err = %v, want ErrGatewayRejected", err)
	}
	if res.State != StateFailed {
		t.Errorf("state = %s, want FAILED", res.State)
	}
}

func TestOpenRejectedWhenSizingFails(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	okx.limits[0].MinQty = 1
	exec, _, _ := newTestExecution(t, binance, okx)

	res, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if !errors.Is(err, ErrQuantityInvalid) {
		t.Fatalf("err = %v, want ErrQuantityInvalid", err)
	}
	if res.State != StateRejected {
		t.Errorf("state = %s, want REJECTED", res.State)
	}
	if binance.orderCount() != 0 || okx.orderCount() != 0 {
		t.Errorf("no leg may be submitted when sizing fails")
	}
}

func TestOpenRejectedWithoutPrice(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	exec, _, _ := newTestExecution(t, binance, okx)
	okx.mu.Lock()
	okx.prices = nil
	okx.mu.Unlock()

	_, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
	if binance.orderCount() != 0 {
		t.Errorf("binance leg submitted without okx price")
	}
}

func TestOpenSignalUnavailable(t *testing.T) {
	exec, _, _ := newTestExecution(t, btcVenue("binance", 0.0001, 43000), btcVenue("okx", 0.0002, 43000))

	res, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "ETHUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if !errors.Is(err, ErrSignalUnavailable) {
		t.Fatalf("err = %v, want ErrSignalUnavailable", err)
	}
	if res.State != StateRejected {
		t.Errorf("state = %s, want REJECTED", res.State)
	}
}

func TestOpenValidation(t *testing.T) {
	exec, _, _ := newTestExecution(t, btcVenue("binance", 0.0001, 43000), btcVenue("okx", 0.0002, 43000))
	ctx := context.Background()

	cases := []struct {
		name string
		req  OpenRequest
		want error
	}{
		{"same venue", OpenRequest{VenueA: "okx", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 1, Leverage: 1}, ErrInvalidRequest},
		{"unknown venue", OpenRequest{VenueA: "binance", VenueB: "kraken", Symbol: "BTCUSDT", MarginPerLeg: 1, Leverage: 1}, ErrUnknownVenue},
		{"zero margin", OpenRequest{VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", Leverage: 1}, ErrInvalidRequest},
		{"empty symbol", OpenRequest{VenueA: "binance", VenueB: "okx", MarginPerLeg: 1, Leverage: 1}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		if _, err := exec.Open(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestOpenGuardedPerSymbol(t *testing.T) {
	exec, _, guard := newTestExecution(t, btcVenue("binance", -0.0003, 43000), btcVenue("okx", 0.0005, 43000))

	release, ok := guard.TryAcquire(GuardKey("BTCUSDT", "okx", "binance"))
	if !ok {
		t.Fatalf("TryAcquire failed")
	}
	_, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	})
	if !errors.Is(err, ErrOperationInFlight) {
		t.Fatalf("err = %v, want ErrOperationInFlight", err)
	}
	release()

	if _, err := exec.Open(context.Background(), OpenRequest{
		VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT", MarginPerLeg: 100, Leverage: 5,
	}); err != nil {
		t.Fatalf("Open after release failed: %v", err)
	}
}

func TestCloseWithoutPositionsIsNoOp(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	exec, _, _ := newTestExecution(t, binance, okx)

	res, err := exec.Close(context.Background(), CloseRequest{VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if res.State != StateDone {
		t.Errorf("state = %s, want DONE", res.State)
	}
	if res.Actions() != 0 {
		t.Errorf("actions = %d, want 0", res.Actions())
	}
	for _, l := range res.Legs {
		if !l.NoOp {
			t.Errorf("leg %s should be a no-op", l.Venue)
		}
	}
	if binance.orderCount() != 0 || okx.orderCount() != 0 {
		t.Errorf("no order may be placed")
	}
}

func TestCloseUsesPositionSideAndQuantity(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	binance.positions = []model.Position{{Venue: "binance", Symbol: "BTCUSDT", Side: model.PositionLong, Quantity: 0.011}}
	okx.positions = []model.Position{
		{Venue: "okx", Symbol: "BTC-USDT-SWAP", Side: model.PositionShort, Quantity: 1.16},
		{Venue: "okx", Symbol: "ETH-USDT-SWAP", Side: model.PositionShort, Quantity: 3},
	}
	exec, _, _ := newTestExecution(t, binance, okx)

	res, err := exec.Close(context.Background(), CloseRequest{VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if res.State != StateDone || res.Actions() != 2 {
		t.Fatalf("state/actions = %s/%d, want DONE/2", res.State, res.Actions())
	}

	b := binance.orders[0]
	if b.Side != model.SideSell || b.PositionSide != model.PositionLong || b.Quantity != 0.011 || !b.ReduceOnly {
		t.Errorf("binance close = %+v", b)
	}
	if b.Type != model.OrderTypeMarket || b.Price != 0 {
		t.Errorf("binance close type = %s price %v, want MARKET", b.Type, b.Price)
	}
	if len(okx.orders) != 1 {
		t.Fatalf("okx orders = %d, want 1", len(okx.orders))
	}
	o := okx.orders[0]
	if o.Side != model.SideBuy || o.PositionSide != model.PositionShort || o.Quantity != 1.16 {
		t.Errorf("okx close = %+v", o)
	}
}

func TestCloseOneLegMissing(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	okx.positions = []model.Position{{Venue: "okx", Symbol: "BTCUSDT", Side: model.PositionShort, Quantity: 0.5}}
	exec, _, _ := newTestExecution(t, binance, okx)

	res, err := exec.Close(context.Background(), CloseRequest{VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT"})
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if res.State != StateDone || res.Actions() != 1 {
		t.Errorf("state/actions = %s/%d, want DONE/1", res.State, res.Actions())
	}
}

func TestCloseLimitSubmitsPricedLegWhenOtherHasNoPrice(t *testing.T) {
	binance := btcVenue("binance", -0.0003, 43000)
	okx := btcVenue("okx", 0.0005, 43000)
	binance.positions = []model.Position{{Venue: "binance", Symbol: "BTCUSDT", Side: model.PositionLong, Quantity: 0.01}}
	okx.positions = []model.Position{{Venue: "okx", Symbol: "BTCUSDT", Side: model.PositionShort, Quantity: 0.01}}
	exec, _, _ := newTestExecution(t, binance, okx)
	exec.cfg.CloseOrderType = model.OrderTypeLimit

	okx.mu.Lock()
	okx.prices = nil
	okx.mu.Unlock()

	res, err := exec.Close(context.Background(), CloseRequest{VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT"})
	if !errors.Is(err, ErrPartialExecution) {
		t.Fatalf("err = %v, want ErrPartialExecution", err)
	}
	if res.State != StatePartialFailure {
		t.Fatalf("state = %s, want PARTIAL_FAILURE", res.State)
	}
	if binance.orderCount() != 1 || okx.orderCount() != 0 {
		t.Fatalf("orders binance=%d okx=%d, want 1/0", binance.orderCount(), okx.orderCount())
	}
	if o := binance.orders[0]; o.Type != model.OrderTypeLimit || o.Price <= 0 || !o.ReduceOnly {
		t.Errorf("binance close = %+v", o)
	}
	for _, l := range res.Legs {
		if l.Venue == "okx" && (l.State != StateFailed || !errors.Is(l.Err, ErrPriceUnavailable)) {
			t.Errorf("okx leg = %+v, want FAILED with ErrPriceUnavailable", l)
		}
	}
}

func TestCloseWaitsForGuard(t *testing.T) {
	exec, _, guard := newTestExecution(t, btcVenue("binance", 0.0001, 43000), btcVenue("okx", 0.0002, 43000))
	release, _ := guard.TryAcquire(GuardKey("BTCUSDT", "binance", "okx"))
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := exec.Close(ctx, CloseRequest{VenueA: "binance", VenueB: "okx", Symbol: "BTCUSDT"})
	if !errors.Is(err, ErrOperationInFlight) {
		t.Errorf("err = %v, want ErrOperationInFlight", err)
	}
}

func TestWithTimeoutIgnoringContext(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	_, err := withTimeout(context.Background(), 20*time.Millisecond, func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("withTimeout did not return promptly")
	}
}
