package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"fundarb/internal/domain/model"
)

// RiskThresholds 风控告警阈值（比例，0.1 = 10%）
type RiskThresholds struct {
	PriceDeviation   float64
	MarginDeviation  float64
	FundingDeviation float64
}

// RateLookup 查询某交易所某 symbol 的当前资金费率
type RateLookup func(venue, symbol string) (*model.FundingRate, bool)

// PriceDeviation |mark-entry|/entry
func PriceDeviation(p model.Position) (float64, bool) {
	if p.EntryPrice <= 0 || p.MarkPrice <= 0 {
		return 0, false
	}
	return math.Abs(p.MarkPrice-p.EntryPrice) / p.EntryPrice, true
}

// MarginDeviation |mA-mB|/max(mA,mB)
func MarginDeviation(a, b model.Position) (float64, bool) {
	hi := math.Max(a.Margin, b.Margin)
	if hi <= 0 {
		return 0, false
	}
	return math.Abs(a.Margin-b.Margin) / hi, true
}

// GroupBySymbol 按 symbol 分组，组内按交易所排序保证输出稳定
func GroupBySymbol(positions []model.Position) map[string][]model.Position {
	out := make(map[string][]model.Position)
	for _, p := range positions {
		if p.Empty() {
			continue
		}
		out[p.Symbol] = append(out[p.Symbol], p)
	}
	for _, legs := range out {
		sort.Slice(legs, func(i, j int) bool { return legs[i].Venue < legs[j].Venue })
	}
	return out
}

// distinctVenues 统计持仓涉及的交易所数量
func distinctVenues(legs []model.Position) int {
	seen := make(map[string]struct{}, len(legs))
	for _, p := range legs {
		seen[p.Venue] = struct{}{}
	}
	return len(seen)
}

// EvaluateSymbol 对同一 symbol 在多个交易所的持仓做风控检查
// 只在两个及以上交易所有仓位时检查；同一交易所的双向持仓不配对。
func EvaluateSymbol(symbol string, legs []model.Position, rates RateLookup, th RiskThresholds, now time.Time) []model.Alert {
	if distinctVenues(legs) < 2 {
		return nil
	}

	var alerts []model.Alert
	for _, leg := range legs {
		dev, ok := PriceDeviation(leg)
		if !ok || dev <= th.PriceDeviation {
			continue
		}
		alerts = append(alerts, model.Alert{
			Kind:      model.AlertPriceDeviation,
			Symbol:    symbol,
			Venues:    []string{leg.Venue},
			Value:     dev,
			Threshold: th.PriceDeviation,
			Message: fmt.Sprintf("🚨 %s %s 价格偏离 %.2f%% 超过 %.2f%%: %s → %s",
				leg.Venue, symbol, dev*100, th.PriceDeviation*100,
				FormatDecimal(leg.EntryPrice), FormatDecimal(leg.MarkPrice)),
			Timestamp: now,
		})
	}

	for i := 0; i < len(legs); i++ {
		for j := i + 1; j < len(legs); j++ {
			a, b := legs[i], legs[j]
			if a.Venue == b.Venue {
				continue
			}
			if dev, ok := MarginDeviation(a, b); ok && dev > th.MarginDeviation {
				alerts = append(alerts, model.Alert{
					Kind:      model.AlertMarginDeviation,
					Symbol:    symbol,
					Venues:    []string{a.Venue, b.Venue},
					Value:     dev,
					Threshold: th.MarginDeviation,
					Message: fmt.Sprintf("⚠️ %s 保证金偏离 %.2f%% 超过 %.2f%%: %s %.4f vs %s %.4f",
						symbol, dev*100, th.MarginDeviation*100, a.Venue, a.Margin, b.Venue, b.Margin),
					Timestamp: now,
				})
			}

			if rates == nil {
				continue
			}
			ra, okA := rates(a.Venue, symbol)
			rb, okB := rates(b.Venue, symbol)
			if !okA || !okB {
				continue
			}
			if diff := RateDiff(ra.Rate, rb.Rate); diff > th.FundingDeviation {
				alerts = append(alerts, model.Alert{
					Kind:      model.AlertFundingDivergence,
					Symbol:    symbol,
					Venues:    []string{a.Venue, b.Venue},
					Value:     diff,
					Threshold: th.FundingDeviation,
					Message: fmt.Sprintf("⚠️ 资金费率差异过大：%s %s: %.6f vs %s: %.6f",
						symbol, a.Venue, ra.Rate, b.Venue, rb.Rate),
					Timestamp: now,
				})
			}
		}
	}
	return alerts
}
