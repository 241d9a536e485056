package service

import (
	"fmt"
	"math"
	"time"

	"fundarb/internal/domain/model"
)

// KlineChange 上一根开盘价到最新收盘价的涨跌幅，0.1 = 10%
func KlineChange(prev, curr model.Kline) (float64, bool) {
	if prev.Open <= 0 || curr.Close <= 0 {
		return 0, false
	}
	return (curr.Close - prev.Open) / prev.Open, true
}

// VolatilityAlertKey 与 EvaluateVolatility 产出的告警 Key 一致，用于拉 K 线前判断冷却
func VolatilityAlertKey(venue, symbol, interval string) string {
	return model.Alert{Kind: model.AlertVolatility, Symbol: symbol, Venues: []string{venue}, Window: interval}.Key()
}

// EvaluateVolatility 取最后两根 K 线，|涨跌幅| 超过阈值时产生告警
func EvaluateVolatility(venue, symbol, interval string, klines []model.Kline, threshold float64, now time.Time) (model.Alert, bool) {
	if threshold <= 0 || len(klines) < 2 {
		return model.Alert{}, false
	}
	prev, curr := klines[len(klines)-2], klines[len(klines)-1]
	change, ok := KlineChange(prev, curr)
	if !ok || math.Abs(change) <= threshold {
		return model.Alert{}, false
	}

	direction := "上涨"
	if change < 0 {
		direction = "下跌"
	}
	return model.Alert{
		Kind:      model.AlertVolatility,
		Symbol:    symbol,
		Venues:    []string{venue},
		Window:    interval,
		Value:     change,
		Threshold: threshold,
		Message: fmt.Sprintf("[🚨 波动警报] %s %s 在 %s 内%s %.2f%%！价格: %s",
			venue, symbol, interval, direction, math.Abs(change)*100, FormatDecimal(curr.Close)),
		Timestamp: now,
	}, true
}
