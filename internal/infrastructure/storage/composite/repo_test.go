package composite

import (
	"context"
	"errors"
	"testing"

	"fundarb/internal/domain/model"
)

type fakeJournal struct {
	err      error
	signals  []model.Signal
	alerts   int
	closed   bool
	closeErr error
}

func (f *fakeJournal) RecordFundingSnapshot(context.Context, string, []model.FundingRate) error {
	return f.err
}

func (f *fakeJournal) RecordSignal(_ context.Context, sig model.Signal) error {
	f.signals = append(f.signals, sig)
	return f.err
}

func (f *fakeJournal) RecordAlert(context.Context, model.Alert) error {
	f.alerts++
	return f.err
}

func (f *fakeJournal) Close() error {
	f.closed = true
	return f.closeErr
}

type readerJournal struct {
	fakeJournal
}

func (r *readerJournal) RecentSignals(context.Context, int) ([]model.Signal, error) {
	return r.signals, nil
}

func TestFanOutFirstErrorWins(t *testing.T) {
	errA := errors.New("a failed")
	a := &fakeJournal{err: errA}
	b := &fakeJournal{err: errors.New("b failed")}
	repo := New(a, nil, b)

	if repo.Len() != 2 {
		t.Fatalf("nil journal should be filtered, got %d", repo.Len())
	}

	err := repo.RecordSignal(context.Background(), model.Signal{Symbol: "BTCUSDT"})
	if !errors.Is(err, errA) {
		t.Errorf("expected first error, got %v", err)
	}
	if len(a.signals) != 1 || len(b.signals) != 1 {
		t.Errorf("every journal should receive the signal")
	}

	_ = repo.RecordAlert(context.Background(), model.Alert{Kind: model.AlertPriceDeviation})
	if a.alerts != 1 || b.alerts != 1 {
		t.Errorf("every journal should receive the alert")
	}
}

func TestRecentSignalsUsesReader(t *testing.T) {
	plain := &fakeJournal{}
	reader := &readerJournal{}
	repo := New(plain, reader)

	_ = repo.RecordSignal(context.Background(), model.Signal{Symbol: "ETHUSDT"})
	got, err := repo.RecentSignals(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "ETHUSDT" {
		t.Errorf("unexpected signals: %+v", got)
	}
}

func TestCloseJoinsErrors(t *testing.T) {
	a := &fakeJournal{closeErr: errors.New("close a")}
	b := &fakeJournal{}
	if err := New(a, b).Close(); err == nil {
		t.Error("expected close error")
	}
	if !a.closed || !b.closed {
		t.Error("all journals should be closed")
	}
}
