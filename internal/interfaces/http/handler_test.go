package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundarb/internal/application/service"
	"fundarb/internal/application/usecase/monitor"
	"fundarb/internal/domain/model"
)

type fakeExecutor struct {
	openReq  service.OpenRequest
	closeReq service.CloseRequest
	err      error
}

func (f *fakeExecutor) Open(_ context.Context, req service.OpenRequest) (*service.ExecutionResult, error) {
	f.openReq = req
	res := &service.ExecutionResult{
		ID:     "exec-1",
		Action: service.ActionOpen,
		Symbol: req.Symbol,
		State:  service.StateDone,
		Legs: []service.LegResult{
			{Venue: req.VenueA, Side: model.SideBuy, State: service.StateDone, OrderID: "1"},
			{Venue: req.VenueB, Side: model.SideSell, State: service.StateFailed, Err: errors.New("boom")},
		},
	}
	return res, f.err
}

func (f *fakeExecutor) Close(_ context.Context, req service.CloseRequest) (*service.ExecutionResult, error) {
	f.closeReq = req
	return &service.ExecutionResult{ID: "exec-2", Action: service.ActionClose, Symbol: req.Symbol, State: service.StateDone}, f.err
}

type fakeSignals struct{ err error }

func (f fakeSignals) Evaluate(_ context.Context, a, b, symbol string) (model.Signal, error) {
	if f.err != nil {
		return model.Signal{}, f.err
	}
	return model.Signal{Symbol: symbol, VenueA: a, VenueB: b, LongVenue: a, ShortVenue: b, Edge: 0.001}, nil
}

type fakePositions struct {
	positions []model.Position
	err       error
}

func (f fakePositions) FetchAll(context.Context) ([]model.Position, error) {
	return f.positions, f.err
}

type fakeBoard struct{ board *monitor.Board }

func (f fakeBoard) Last() *monitor.Board { return f.board }

func newTestServer(deps Deps, token string) *Server {
	return NewServer(":0", token, NewHandler(deps))
}

func do(t *testing.T, s *Server, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return w, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(Deps{}, "secret")
	w, out := do(t, s, http.MethodGet, "/sys/health", "", nil)
	if w.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", w.Code, out)
	}
}

func TestOpenResolvesAliases(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestServer(Deps{Executor: exec}, "")

	w, out := do(t, s, http.MethodPost, "/api/v1/open",
		`{"venue_a":"bn","venue_b":"by","symbol":"btc","margin":100,"leverage":5}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", w.Code, out)
	}
	if exec.openReq.VenueA != model.VenueBinance || exec.openReq.VenueB != model.VenueBybit {
		t.Errorf("aliases not resolved: %+v", exec.openReq)
	}
	if exec.openReq.MarginPerLeg != 100 || exec.openReq.Leverage != 5 {
		t.Errorf("unexpected request: %+v", exec.openReq)
	}

	data := out["data"].(map[string]any)
	legs := data["legs"].([]any)
	second := legs[1].(map[string]any)
	if second["error"] != "boom" {
		t.Errorf("leg error should be rendered, got %v", second["error"])
	}
}

func TestOpenErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: BTCUSDT", service.ErrOperationInFlight), http.StatusConflict},
		{fmt.Errorf("%w: leverage", service.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: x", service.ErrPartialExecution), http.StatusBadGateway},
		{service.ErrSignalUnavailable, http.StatusServiceUnavailable},
		{service.ErrQuantityInvalid, http.StatusUnprocessableEntity},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s := newTestServer(Deps{Executor: &fakeExecutor{err: tc.err}}, "")
		w, out := do(t, s, http.MethodPost, "/api/v1/open",
			`{"venue_a":"okx","venue_b":"bg","symbol":"ETHUSDT","margin":10,"leverage":1}`, nil)
		if w.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
		if out["error"] == nil {
			t.Errorf("%v: error text missing", tc.err)
		}
	}
}

func TestUnknownVenueRejected(t *testing.T) {
	exec := &fakeExecutor{}
	s := newTestServer(Deps{Executor: exec}, "")
	w, _ := do(t, s, http.MethodPost, "/api/v1/close", `{"venue_a":"ftx","venue_b":"okx","symbol":"BTCUSDT"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if exec.closeReq.Symbol != "" {
		t.Error("executor must not be called for unknown venue")
	}
}

func TestBearerToken(t *testing.T) {
	s := newTestServer(Deps{Signals: fakeSignals{}}, "secret")
	path := "/api/v1/signal?venue_a=okx&venue_b=bn&symbol=BTCUSDT"

	w, _ := do(t, s, http.MethodGet, path, "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w, out := do(t, s, http.MethodGet, path, "", map[string]string{"Authorization": "Bearer secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := out["data"].(map[string]any)
	if data["long_venue"] != model.VenueOKX {
		t.Errorf("unexpected signal: %v", data)
	}
}

func TestSignalUnavailable(t *testing.T) {
	s := newTestServer(Deps{Signals: fakeSignals{err: service.ErrSignalUnavailable}}, "")
	w, _ := do(t, s, http.MethodGet, "/api/v1/signal?venue_a=okx&venue_b=bn&symbol=BTCUSDT", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestPositionsPartialFailure(t *testing.T) {
	err := errors.Join(&service.VenueError{Venue: "bybit", Err: errors.New("timeout")})
	s := newTestServer(Deps{Positions: fakePositions{
		positions: []model.Position{{Venue: "okx", Symbol: "BTCUSDT", Side: model.PositionLong, Quantity: 1}},
		err:       err,
	}}, "")

	w, out := do(t, s, http.MethodGet, "/api/v1/positions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(out["data"].([]any)) != 1 {
		t.Errorf("expected 1 position, got %v", out["data"])
	}
	errs := out["errors"].(map[string]any)
	if errs["bybit"] != "timeout" {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestBoardAndDisabledRoutes(t *testing.T) {
	board := &monitor.Board{
		At:    time.Unix(1700000000, 0),
		Diffs: []model.FundingDiff{{Symbol: "BTCUSDT", VenueA: "okx", VenueB: "binance", Diff: 0.001}},
	}
	s := newTestServer(Deps{Board: fakeBoard{board: board}}, "")

	w, out := do(t, s, http.MethodGet, "/api/v1/board", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data := out["data"].(map[string]any)
	if len(data["diffs"].([]any)) != 1 {
		t.Errorf("unexpected board: %v", data)
	}

	w, _ = do(t, s, http.MethodGet, "/api/v1/signals", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("journal not configured, expected 503, got %d", w.Code)
	}
}
