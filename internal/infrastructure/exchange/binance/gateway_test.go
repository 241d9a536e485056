package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gw, err := New(exchange.Config{Venue: model.VenueBinance, APIKey: "k", APISecret: "s", RestURL: srv.URL})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw.(*Gateway)
}

func TestGetFundingRatesUsesFundingInfoInterval(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/premiumIndex":
			_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","markPrice":"100","lastFundingRate":"0.0001","nextFundingTime":1700000000000},
				{"symbol":"ETHUSDT","markPrice":"10","lastFundingRate":"-0.0002","nextFundingTime":1700000000000},
				{"symbol":"OLDUSDT","lastFundingRate":""}]`))
		case "/fapi/v1/fundingInfo":
			_, _ = w.Write([]byte(`[{"symbol":"ETHUSDT","fundingIntervalHours":4}]`))
		default:
			http.NotFound(w, r)
		}
	})

	rates, err := gw.GetFundingRates(context.Background())
	if err != nil {
		t.Fatalf("funding rates: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	if rates[0].IntervalHours != 8 || rates[1].IntervalHours != 4 {
		t.Errorf("unexpected intervals: %d %d", rates[0].IntervalHours, rates[1].IntervalHours)
	}
	if rates[1].Rate != -0.0002 {
		t.Errorf("unexpected rate %v", rates[1].Rate)
	}
}

func TestSignedRequestCarriesSignature(t *testing.T) {
	var got url.Values
	var apiKey string
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		apiKey = r.Header.Get("X-MBX-APIKEY")
		_, _ = w.Write([]byte(`{"leverage":5,"symbol":"BTCUSDT"}`))
	})

	if err := gw.SetLeverage(context.Background(), "btc", 5); err != nil {
		t.Fatalf("set leverage: %v", err)
	}
	if apiKey != "k" {
		t.Errorf("api key header = %q", apiKey)
	}
	if got.Get("symbol") != "BTCUSDT" || got.Get("leverage") != "5" {
		t.Errorf("unexpected params %v", got)
	}
	sig := got.Get("signature")
	got.Del("signature")
	if want := NewCredentials("k", "s").Sign(got.Encode()); sig != want {
		t.Errorf("signature mismatch: got %s want %s", sig, want)
	}
}

func TestBusinessErrorIsRejected(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fapi/v1/positionSide/dual" {
			_, _ = w.Write([]byte(`{"dualSidePosition":false}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	})

	_, err := gw.PlaceOrder(context.Background(), model.OrderRequest{
		Symbol: "BTCUSDT", Side: model.SideBuy, PositionSide: model.PositionLong,
		Type: model.OrderTypeLimit, Quantity: 0.01, Price: 100,
	})
	if !errors.Is(err, port.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
}

func TestOrderWithoutIDIsRejected(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fapi/v1/positionSide/dual" {
			_, _ = w.Write([]byte(`{"dualSidePosition":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":-4164,"msg":"Order's notional must be no smaller than 5"}`))
	})

	_, err := gw.PlaceOrder(context.Background(), model.OrderRequest{
		Symbol: "BTCUSDT", Side: model.SideBuy, PositionSide: model.PositionLong,
		Type: model.OrderTypeMarket, Quantity: 0.00001,
	})
	if !errors.Is(err, port.ErrGatewayRejected) {
		t.Fatalf("expected ErrGatewayRejected, got %v", err)
	}
}

func TestGetKlines(t *testing.T) {
	var query url.Values
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(`[
			[1700000000000,"100.0","112.0","99.5","110.0","1234.5",1700000299999,"0",10,"0","0","0"],
			[1700000300000,"110.0","111.0","95.0","96.5","987.1",1700000599999,"0",8,"0","0","0"]
		]`))
	})

	klines, err := gw.GetKlines(context.Background(), "SOLUSDT", "5m", 2)
	if err != nil {
		t.Fatalf("GetKlines: %v", err)
	}
	if query.Get("symbol") != "SOLUSDT" || query.Get("interval") != "5m" || query.Get("limit") != "2" {
		t.Errorf("query = %v", query)
	}
	if len(klines) != 2 {
		t.Fatalf("klines = %+v", klines)
	}
	k := klines[1]
	if k.Open != 110 || k.Close != 96.5 || k.Low != 95 || k.Symbol != "SOLUSDT" || k.OpenTime.UnixMilli() != 1700000300000 {
		t.Errorf("kline = %+v", k)
	}
}

func TestPlaceOrderHedgeModeSetsPositionSide(t *testing.T) {
	var order url.Values
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/positionSide/dual":
			_, _ = w.Write([]byte(`{"dualSidePosition":true}`))
		case "/fapi/v1/order":
			order = r.URL.Query()
			_, _ = w.Write([]byte(`{"orderId":42,"status":"NEW"}`))
		}
	})

	id, err := gw.PlaceOrder(context.Background(), model.OrderRequest{
		Symbol: "BTCUSDT", Side: model.SideSell, PositionSide: model.PositionLong,
		Type: model.OrderTypeMarket, Quantity: 0.01, ReduceOnly: true, ClientOrderID: "abc",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if id != "42" {
		t.Errorf("order id = %s", id)
	}
	if order.Get("positionSide") != "LONG" || order.Get("reduceOnly") != "" {
		t.Errorf("hedge mode order params wrong: %v", order)
	}
	if order.Get("type") != "MARKET" || order.Get("newClientOrderId") != "abc" {
		t.Errorf("unexpected order params: %v", order)
	}
}

func TestMissingCredentials(t *testing.T) {
	gw, _ := New(exchange.Config{Venue: model.VenueBinance, RestURL: "http://127.0.0.1:1"})
	_, err := gw.GetPositions(context.Background())
	if !errors.Is(err, exchange.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestParseMarkPrices(t *testing.T) {
	rates, err := ParseMarkPrices([]byte(`[{"e":"markPriceUpdate","s":"BTCUSDT","p":"100","r":"0.0003","T":1700000000000},{"e":"markPriceUpdate","s":"XUSDT","r":""}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rates) != 1 || rates[0].Symbol != "BTCUSDT" || rates[0].Rate != 0.0003 {
		t.Fatalf("unexpected rates %+v", rates)
	}
	if rates[0].IntervalHours != 0 {
		t.Errorf("push should not carry interval, got %d", rates[0].IntervalHours)
	}
}
