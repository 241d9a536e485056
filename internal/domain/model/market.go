package model

import "time"

// FundingRate 永续合约资金费率（已归一化 symbol）
type FundingRate struct {
	Venue          string    `json:"venue"`
	Symbol         string    `json:"symbol"`
	Rate           float64   `json:"rate"`           // 带符号的费率，0.0001 = 0.01%
	IntervalHours  int       `json:"interval_hours"` // 结算周期（小时）
	NextSettlement time.Time `json:"next_settlement"`
}

// AbsRate 费率绝对值
func (f FundingRate) AbsRate() float64 {
	if f.Rate < 0 {
		return -f.Rate
	}
	return f.Rate
}

// Price 最新成交价及其价格精度
type Price struct {
	Venue        string  `json:"venue"`
	Symbol       string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	DecimalScale int32   `json:"decimal_scale"` // 由 open/high/low/last 推断出的最大小数位
}

// InstrumentLimit 交易所下单数量约束
type InstrumentLimit struct {
	Venue         string  `json:"venue"`
	Symbol        string  `json:"symbol"`
	MinQty        float64 `json:"min_qty"`
	MaxQty        float64 `json:"max_qty"` // 0 表示无上限
	StepSize      float64 `json:"step_size"`
	ContractValue float64 `json:"contract_value"` // 每张合约对应的币数量，按币下单的交易所为 1
}

// Kline 单根 K 线
type Kline struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // 5m / 15m / 1h
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}
