package service

import (
	"errors"
	"testing"
	"time"

	"fundarb/internal/domain/model"
)

func rate(venue string, r float64, interval int) *model.FundingRate {
	return &model.FundingRate{Venue: venue, Symbol: "BTCUSDT", Rate: r, IntervalHours: interval}
}

var noFlip = SettlementPolicy{}

func TestDecideEqualIntervalLowerRateGoesLong(t *testing.T) {
	now := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)

	d, err := Decide(rate("A", -0.0003, 8), rate("B", 0.0005, 8), now, noFlip)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.LongVenue != "A" || d.ShortVenue != "B" {
		t.Fatalf("expected long A short B, got long %s short %s", d.LongVenue, d.ShortVenue)
	}
	if d.Edge <= 0 {
		t.Errorf("expected positive edge, got %v", d.Edge)
	}

	d, _ = Decide(rate("A", 0.0002, 8), rate("B", -0.0001, 8), now, noFlip)
	if d.LongVenue != "B" || d.ShortVenue != "A" {
		t.Errorf("expected long B short A, got long %s short %s", d.LongVenue, d.ShortVenue)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	now := time.Now()
	a, b := rate("A", 0.0001, 8), rate("B", 0.0001, 8)

	first, err := Decide(a, b, now, noFlip)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		d, _ := Decide(a, b, now, noFlip)
		if d != first {
			t.Fatalf("decision changed on call %d: %+v vs %+v", i, d, first)
		}
	}
	if first.LongVenue == first.ShortVenue {
		t.Errorf("same venue on both legs: %+v", first)
	}
}

func TestDecideDifferentIntervals(t *testing.T) {
	now := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		a, b     *model.FundingRate
		wantLong string
	}{
		{"shorter negative goes long", rate("A", -0.001, 4), rate("B", -0.002, 8), "A"},
		{"shorter positive goes short", rate("A", 0.001, 4), rate("B", 0.002, 8), "B"},
		{"shorter on B side", rate("A", -0.004, 8), rate("B", 0.0003, 1), "A"},
		{"shorter zero falls back to lower rate", rate("A", 0, 4), rate("B", -0.0001, 8), "B"},
		{"unknown interval defaults to 8h", rate("A", 0.0005, 0), rate("B", 0.0001, 8), "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(tt.a, tt.b, now, noFlip)
			if err != nil {
				t.Fatalf("Decide failed: %v", err)
			}
			if d.LongVenue != tt.wantLong {
				t.Errorf("long = %s, want %s", d.LongVenue, tt.wantLong)
			}
		})
	}
}

func TestDecideMissingRate(t *testing.T) {
	_, err := Decide(nil, rate("B", 0.0001, 8), time.Now(), noFlip)
	if !errors.Is(err, ErrSignalUnavailable) {
		t.Fatalf("expected ErrSignalUnavailable, got %v", err)
	}
	_, err = Decide(rate("A", 0.0001, 8), nil, time.Now(), noFlip)
	if !errors.Is(err, ErrSignalUnavailable) {
		t.Fatalf("expected ErrSignalUnavailable, got %v", err)
	}
}

func TestDecideSettlementWindowFlip(t *testing.T) {
	policy := SettlementPolicy{Enabled: true, BoundaryHoursUTC: []int{0, 8, 16}, Window: 30 * time.Minute}
	boundary := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	a := rate("A", -0.0003, 8)
	b := rate("B", 0.0005, 8)
	a.NextSettlement = boundary
	b.NextSettlement = boundary

	d, _ := Decide(a, b, boundary.Add(-15*time.Minute), policy)
	if !d.Flipped || d.LongVenue != "B" {
		t.Fatalf("expected flipped decision long B inside window, got %+v", d)
	}

	d, _ = Decide(a, b, boundary.Add(-2*time.Hour), policy)
	if d.Flipped || d.LongVenue != "A" {
		t.Errorf("expected no flip outside window, got %+v", d)
	}

	d, _ = Decide(a, b, boundary, policy)
	if d.Flipped {
		t.Errorf("boundary itself is outside the window, got %+v", d)
	}

	// 结算时间不一致时不反转
	b.NextSettlement = boundary.Add(4 * time.Hour)
	d, _ = Decide(a, b, boundary.Add(-10*time.Minute), policy)
	if d.Flipped {
		t.Errorf("expected no flip for unshared boundary, got %+v", d)
	}

	d, _ = Decide(a, b, boundary.Add(-10*time.Minute), SettlementPolicy{BoundaryHoursUTC: []int{8}, Window: time.Hour})
	if d.Flipped {
		t.Errorf("disabled policy flipped: %+v", d)
	}
}

func TestNextBoundaryRollsOverMidnight(t *testing.T) {
	policy := SettlementPolicy{Enabled: true, BoundaryHoursUTC: []int{0, 8, 16}, Window: 30 * time.Minute}
	now := time.Date(2025, 1, 1, 23, 50, 0, 0, time.UTC)

	want := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := policy.NextBoundary(now); !got.Equal(want) {
		t.Fatalf("NextBoundary = %v, want %v", got, want)
	}
	if !policy.Applies(now, rate("A", 0.1, 8), rate("B", 0.2, 8)) {
		t.Errorf("expected window to apply before midnight settlement")
	}
}
