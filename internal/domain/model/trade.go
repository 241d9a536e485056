package model

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite 反向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide 持仓方向
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderRequest 下单请求，symbol 为归一化格式，由网关负责转换
type OrderRequest struct {
	Symbol        string       `json:"symbol"`
	Side          Side         `json:"side"`
	PositionSide  PositionSide `json:"position_side"`
	Type          OrderType    `json:"type"`
	Quantity      float64      `json:"quantity"`
	Price         float64      `json:"price,omitempty"` // 市价单为 0
	ReduceOnly    bool         `json:"reduce_only,omitempty"`
	ClientOrderID string       `json:"client_order_id,omitempty"`
}

// TradeDecision 一次开平仓命令的决策
type TradeDecision struct {
	VenueA       string  `json:"venue_a"`
	VenueB       string  `json:"venue_b"`
	Symbol       string  `json:"symbol"`
	LongVenue    string  `json:"long_venue"`
	ShortVenue   string  `json:"short_venue"`
	MarginPerLeg float64 `json:"margin_per_leg"`
	Leverage     int     `json:"leverage"`
	Edge         float64 `json:"edge"`
}
