package bybit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

type orderPayload struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"timeInForce,omitempty"`
	OrderLinkID string `json:"orderLinkId,omitempty"`
	ReduceOnly  bool   `json:"reduceOnly,omitempty"`
	PositionIdx int    `json:"positionIdx"`
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceOrder /v5/order/create
// 双向持仓 positionIdx 1 为多、2 为空；单向持仓为 0。
func (c *Gateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	payload := orderPayload{
		Category:    category,
		Symbol:      dsvc.ToVenueSymbol(req.Symbol, model.VenueBybit),
		Side:        "Buy",
		OrderType:   "Limit",
		Qty:         dsvc.FormatDecimal(req.Quantity),
		OrderLinkID: req.ClientOrderID,
		ReduceOnly:  req.ReduceOnly,
	}
	if req.Side == model.SideSell {
		payload.Side = "Sell"
	}
	if req.Type == model.OrderTypeMarket {
		payload.OrderType = "Market"
	} else {
		payload.Price = dsvc.FormatDecimal(req.Price)
		payload.TimeInForce = "GTC"
	}
	if c.hedgeMode(ctx, req.Symbol) {
		payload.PositionIdx = 1
		if req.PositionSide == model.PositionShort {
			payload.PositionIdx = 2
		}
	}

	body, err := c.signedJSONRequest(ctx, "/v5/order/create", payload)
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}
	var res orderResult
	if err := decode(body, &res); err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}

	log.Info().
		Str("exchange", model.VenueBybit).
		Str("symbol", payload.Symbol).
		Str("side", payload.Side).
		Str("type", payload.OrderType).
		Str("qty", payload.Qty).
		Str("price", payload.Price).
		Str("orderID", res.OrderID).
		Msg("order placed")

	return res.OrderID, nil
}

// hedgeMode 按 symbol 缓存持仓模式，查询失败按单向处理且下次重试
func (c *Gateway) hedgeMode(ctx context.Context, symbol string) bool {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	if hedge, ok := c.modes[symbol]; ok {
		return hedge
	}
	rows, err := c.positionList(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("bybit position mode query failed, assuming one-way")
		return false
	}
	hedge := false
	for _, p := range rows {
		if p.PositionIdx != 0 {
			hedge = true
			break
		}
	}
	c.modes[symbol] = hedge
	return hedge
}
