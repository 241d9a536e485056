package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/notify"
)

type fakeClient struct {
	chatID  int64
	mu      sync.Mutex
	batches [][]notify.Update
	offsets []int64
	sent    []string
	cancel  context.CancelFunc
}

func (f *fakeClient) ChatID() int64 { return f.chatID }

func (f *fakeClient) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]notify.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if len(f.batches) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeClient) Send(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

type fakeExecutor struct {
	open  *service.OpenRequest
	close *service.CloseRequest
}

func (f *fakeExecutor) Open(_ context.Context, req service.OpenRequest) (*service.ExecutionResult, error) {
	f.open = &req
	return &service.ExecutionResult{
		Action: service.ActionOpen, Symbol: "BTCUSDT", State: service.StateDone,
		Legs: []service.LegResult{
			{Venue: req.VenueA, Side: model.SideBuy, Quantity: 0.01, OrderID: "a1", State: service.StateDone},
			{Venue: req.VenueB, Side: model.SideSell, Quantity: 0.01, OrderID: "b1", State: service.StateDone},
		},
	}, nil
}

func (f *fakeExecutor) Close(_ context.Context, req service.CloseRequest) (*service.ExecutionResult, error) {
	f.close = &req
	err := errors.New("symbol in flight")
	return &service.ExecutionResult{Action: service.ActionClose, Symbol: "BTCUSDT", State: service.StateRejected}, err
}

type fakeSignals struct{}

func (fakeSignals) Evaluate(_ context.Context, a, b, symbol string) (model.Signal, error) {
	return model.Signal{Symbol: symbol, VenueA: a, VenueB: b, RateA: 0.0001, RateB: 0.0005,
		LongVenue: a, ShortVenue: b, Edge: 0.0004, Flipped: true}, nil
}

type fakePositions struct{}

func (fakePositions) FetchAll(context.Context) ([]model.Position, error) {
	return []model.Position{{Venue: "okx", Symbol: "BTCUSDT", Side: model.PositionLong, Quantity: 2, EntryPrice: 100}}, nil
}

func newBot(exec *fakeExecutor) *Bot {
	return NewBot(&fakeClient{chatID: 42}, Deps{
		Executor:  exec,
		Signals:   fakeSignals{},
		Positions: fakePositions{},
	}, time.Second)
}

func TestHandleOpen(t *testing.T) {
	exec := &fakeExecutor{}
	bot := newBot(exec)

	reply := bot.Handle(context.Background(), "/open bn by BTCUSDT 100 5")
	if exec.open == nil {
		t.Fatal("executor not called")
	}
	if exec.open.VenueA != model.VenueBinance || exec.open.VenueB != model.VenueBybit {
		t.Errorf("aliases not resolved: %+v", exec.open)
	}
	if exec.open.MarginPerLeg != 100 || exec.open.Leverage != 5 {
		t.Errorf("unexpected request: %+v", exec.open)
	}
	if !strings.Contains(reply, "DONE") || !strings.Contains(reply, "a1") {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestHandleOpenBadArgs(t *testing.T) {
	exec := &fakeExecutor{}
	bot := newBot(exec)

	for _, text := range []string{
		"/open bn by BTCUSDT",
		"/open bn ftx BTCUSDT 100 5",
		"/open bn by BTCUSDT abc 5",
		"/open bn by BTCUSDT 100 0",
	} {
		if reply := bot.Handle(context.Background(), text); reply == "" {
			t.Errorf("%q: expected usage reply", text)
		}
	}
	if exec.open != nil {
		t.Error("executor must not be called with invalid arguments")
	}
}

func TestHandleCloseRejected(t *testing.T) {
	exec := &fakeExecutor{}
	reply := newBot(exec).Handle(context.Background(), "/close@FundBot okx bg ETHUSDT")
	if exec.close == nil || exec.close.VenueB != model.VenueBitget {
		t.Fatalf("unexpected close request: %+v", exec.close)
	}
	if !strings.Contains(reply, "REJECTED") || !strings.Contains(reply, "symbol in flight") {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestHandleSignalAndPositions(t *testing.T) {
	bot := newBot(&fakeExecutor{})

	reply := bot.Handle(context.Background(), "/signal okx bn BTCUSDT")
	if !strings.Contains(reply, "做多 okx") || !strings.Contains(reply, "反转") {
		t.Errorf("unexpected signal reply: %q", reply)
	}

	reply = bot.Handle(context.Background(), "/positions")
	if !strings.Contains(reply, "okx BTCUSDT LONG 2") {
		t.Errorf("unexpected positions reply: %q", reply)
	}

	if reply := bot.Handle(context.Background(), "/bills"); reply != "账单未启用" {
		t.Errorf("unexpected bills reply: %q", reply)
	}
	if reply := bot.Handle(context.Background(), "hello"); reply != "" {
		t.Errorf("plain text should be ignored, got %q", reply)
	}
}

func TestRunIgnoresOtherChats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mkUpdate := func(id, chat int64, text string) notify.Update {
		u := notify.Update{UpdateID: id}
		u.Message = &notify.Message{Text: text}
		u.Message.Chat.ID = chat
		return u
	}

	client := &fakeClient{
		chatID: 42,
		cancel: cancel,
		batches: [][]notify.Update{
			{mkUpdate(10, 7, "/positions"), mkUpdate(11, 42, "/help")},
		},
	}
	bot := NewBot(client, Deps{Positions: fakePositions{}}, time.Second)
	if err := bot.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if len(client.sent) != 1 || !strings.Contains(client.sent[0], "/open") {
		t.Errorf("expected only the help reply, got %v", client.sent)
	}
	if len(client.offsets) != 2 || client.offsets[1] != 12 {
		t.Errorf("offset should advance past the last update, got %v", client.offsets)
	}
}
