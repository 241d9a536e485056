package model

import "time"

// Position 交易所实时持仓，不做缓存
type Position struct {
	Venue         string       `json:"venue"`
	Symbol        string       `json:"symbol"`
	Side          PositionSide `json:"side"`
	Quantity      float64      `json:"quantity"` // 恒为正数，按交易所下单单位（币或张）
	EntryPrice    float64      `json:"entry_price"`
	MarkPrice     float64      `json:"mark_price"`
	Margin        float64      `json:"margin"`
	UnrealizedPnl float64      `json:"unrealized_pnl"`
	Leverage      int          `json:"leverage"`
}

// CloseSide 平仓方向
func (p Position) CloseSide() Side {
	if p.Side == PositionLong {
		return SideSell
	}
	return SideBuy
}

// Empty 是否无持仓
func (p Position) Empty() bool {
	return p.Quantity <= 0
}

// IncomeType 资金流水类型
type IncomeType string

const (
	IncomeFundingFee  IncomeType = "FUNDING_FEE"
	IncomeCommission  IncomeType = "COMMISSION"
	IncomeRealizedPnl IncomeType = "REALIZED_PNL"
)

// Bill 单条资金流水
type Bill struct {
	Venue  string     `json:"venue"`
	Symbol string     `json:"symbol"`
	Type   IncomeType `json:"type"`
	Amount float64    `json:"amount"`
	Time   time.Time  `json:"time"`
}

// BillSummary 按交易所汇总的资金流水
type BillSummary struct {
	Venue       string  `json:"venue"`
	FundingFee  float64 `json:"funding_fee"`
	TradeFee    float64 `json:"trade_fee"`
	RealizedPnl float64 `json:"realized_pnl"`
}

// Net 净收益
func (s BillSummary) Net() float64 {
	return s.FundingFee + s.TradeFee + s.RealizedPnl
}
