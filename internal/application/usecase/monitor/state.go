package monitor

import (
	"sort"
	"strings"

	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

// symbolFilter 为空表示不过滤
type symbolFilter map[string]struct{}

func newSymbolFilter(symbols []string) symbolFilter {
	if len(symbols) == 0 {
		return nil
	}
	f := make(symbolFilter, len(symbols))
	for _, s := range symbols {
		if n := dsvc.NormalizeSymbol(strings.TrimSpace(s), ""); n != "" {
			f[n] = struct{}{}
		}
	}
	return f
}

func (f symbolFilter) allow(symbol string) bool {
	if f == nil {
		return true
	}
	_, ok := f[symbol]
	return ok
}

// RankDiffs 所有交易所两两组合、两边都有费率的 symbol，按 |rateA-rateB| 降序取前 topN
func RankDiffs(cache *service.MarketDataCache, filter symbolFilter, topN int) []model.FundingDiff {
	venues := cache.Venues()
	var rows []model.FundingDiff
	for i := 0; i < len(venues); i++ {
		a := cache.Snapshot(venues[i])
		if a == nil {
			continue
		}
		for j := i + 1; j < len(venues); j++ {
			b := cache.Snapshot(venues[j])
			if b == nil {
				continue
			}
			rows = append(rows, pairDiffs(a, b, filter)...)
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Diff != rows[j].Diff {
			return rows[i].Diff > rows[j].Diff
		}
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].VenueA+rows[i].VenueB < rows[j].VenueA+rows[j].VenueB
	})
	if topN > 0 && len(rows) > topN {
		rows = rows[:topN]
	}
	return rows
}

func pairDiffs(a, b *service.Snapshot, filter symbolFilter) []model.FundingDiff {
	var out []model.FundingDiff
	for symbol, ra := range a.Funding {
		if !filter.allow(symbol) {
			continue
		}
		rb, ok := b.Funding[symbol]
		if !ok {
			continue
		}
		diff := dsvc.RateDiff(ra.Rate, rb.Rate)
		if diff < dsvc.MinRateDiff {
			continue
		}
		out = append(out, model.FundingDiff{
			Symbol:    symbol,
			VenueA:    a.Venue,
			VenueB:    b.Venue,
			PriceA:    a.Prices[symbol].LastPrice,
			PriceB:    b.Prices[symbol].LastPrice,
			RateA:     ra.Rate,
			RateB:     rb.Rate,
			IntervalA: ra.IntervalHours,
			IntervalB: rb.IntervalHours,
			Diff:      diff,
		})
	}
	return out
}

// TopRates 单个交易所按 |rate| 降序取前 topN
func TopRates(snap *service.Snapshot, filter symbolFilter, topN int) []model.FundingRate {
	if snap == nil {
		return nil
	}
	out := make([]model.FundingRate, 0, len(snap.Funding))
	for symbol, r := range snap.Funding {
		if filter.allow(symbol) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AbsRate() != out[j].AbsRate() {
			return out[i].AbsRate() > out[j].AbsRate()
		}
		return out[i].Symbol < out[j].Symbol
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
