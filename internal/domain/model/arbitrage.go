package model

import "time"

// Signal 套利信号：两个交易所同一 symbol 的方向决策
type Signal struct {
	Symbol     string    `json:"symbol"`
	VenueA     string    `json:"venue_a"`
	VenueB     string    `json:"venue_b"`
	RateA      float64   `json:"rate_a"`
	RateB      float64   `json:"rate_b"`
	IntervalA  int       `json:"interval_a"`
	IntervalB  int       `json:"interval_b"`
	LongVenue  string    `json:"long_venue"`
	ShortVenue string    `json:"short_venue"`
	Edge       float64   `json:"edge"`    // rate(short) - rate(long)
	Flipped    bool      `json:"flipped"` // 结算前窗口内被反转
	Timestamp  time.Time `json:"ts"`
}

// FundingDiff 看板中的一行：两交易所费率差
type FundingDiff struct {
	Symbol    string  `json:"symbol"`
	VenueA    string  `json:"venue_a"`
	VenueB    string  `json:"venue_b"`
	PriceA    float64 `json:"price_a"`
	PriceB    float64 `json:"price_b"`
	RateA     float64 `json:"rate_a"`
	RateB     float64 `json:"rate_b"`
	IntervalA int     `json:"interval_a"`
	IntervalB int     `json:"interval_b"`
	Diff      float64 `json:"diff"` // |rateA - rateB|
}

// AlertKind 风险告警类型
type AlertKind string

const (
	AlertPriceDeviation    AlertKind = "PRICE_DEVIATION"
	AlertMarginDeviation   AlertKind = "MARGIN_DEVIATION"
	AlertFundingDivergence AlertKind = "FUNDING_DIVERGENCE"
	AlertVenueUnavailable  AlertKind = "VENUE_UNAVAILABLE"
	AlertVolatility        AlertKind = "VOLATILITY"
)

// Alert 风险告警
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Symbol    string    `json:"symbol"`
	Venues    []string  `json:"venues"`
	Window    string    `json:"window,omitempty"` // K 线周期，仅波动告警
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}

// Key 用于告警去重
func (a Alert) Key() string {
	key := string(a.Kind) + ":" + a.Symbol
	for _, v := range a.Venues {
		key += ":" + v
	}
	if a.Window != "" {
		key += "@" + a.Window
	}
	return key
}
