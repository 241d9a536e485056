package service

import (
	"errors"
	"time"

	"fundarb/internal/domain/model"
)

// ErrSignalUnavailable 任一交易所缺少资金费率
var ErrSignalUnavailable = errors.New("signal unavailable")

// DefaultIntervalHours 交易所未返回结算周期时的默认值
const DefaultIntervalHours = 8

// SettlementPolicy 结算前反转策略
// 当前时间落在两个交易所共同结算点之前的 Window 内时，方向反转一次。
type SettlementPolicy struct {
	Enabled          bool
	BoundaryHoursUTC []int
	Window           time.Duration
}

// Decision 开仓方向
type Decision struct {
	LongVenue  string
	ShortVenue string
	Edge       float64 // rate(short) - rate(long)
	Flipped    bool
}

// Decide 根据两个交易所的资金费率决定多空方向，纯函数
func Decide(a, b *model.FundingRate, now time.Time, policy SettlementPolicy) (Decision, error) {
	if a == nil || b == nil {
		return Decision{}, ErrSignalUnavailable
	}

	longA := chooseLongA(a, b)
	flipped := policy.Applies(now, a, b)
	if flipped {
		longA = !longA
	}

	d := Decision{Flipped: flipped}
	if longA {
		d.LongVenue, d.ShortVenue = a.Venue, b.Venue
		d.Edge = b.Rate - a.Rate
	} else {
		d.LongVenue, d.ShortVenue = b.Venue, a.Venue
		d.Edge = a.Rate - b.Rate
	}
	return d, nil
}

// chooseLongA 周期相同：费率低的做多；周期不同：按短周期一方的费率符号决定
func chooseLongA(a, b *model.FundingRate) bool {
	ia, ib := intervalOf(a), intervalOf(b)
	if ia != ib {
		shorterIsA := ia < ib
		shorter := b
		if shorterIsA {
			shorter = a
		}
		switch {
		case shorter.Rate < 0:
			return shorterIsA
		case shorter.Rate > 0:
			return !shorterIsA
		}
	}
	return a.Rate < b.Rate
}

func intervalOf(r *model.FundingRate) int {
	if r.IntervalHours <= 0 {
		return DefaultIntervalHours
	}
	return r.IntervalHours
}

// Applies 是否处于共同结算点之前的反转窗口
func (p SettlementPolicy) Applies(now time.Time, a, b *model.FundingRate) bool {
	if !p.Enabled || p.Window <= 0 || len(p.BoundaryHoursUTC) == 0 {
		return false
	}
	boundary := p.NextBoundary(now)
	if boundary.IsZero() || boundary.Sub(now) > p.Window {
		return false
	}
	return settlesAt(a, boundary) && settlesAt(b, boundary)
}

// NextBoundary 严格晚于 now 的下一个结算整点（UTC）
func (p SettlementPolicy) NextBoundary(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var next time.Time
	for _, h := range p.BoundaryHoursUTC {
		if h < 0 || h > 23 {
			continue
		}
		for _, d := range []time.Time{day, day.AddDate(0, 0, 1)} {
			t := d.Add(time.Duration(h) * time.Hour)
			if t.After(now) && (next.IsZero() || t.Before(next)) {
				next = t
			}
		}
	}
	return next
}

// 未知的下次结算时间视为按配置的整点结算
func settlesAt(r *model.FundingRate, boundary time.Time) bool {
	if r.NextSettlement.IsZero() {
		return true
	}
	diff := r.NextSettlement.Sub(boundary)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Minute
}
