package bitget

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
)

type orderPayload struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	MarginMode  string `json:"marginMode"`
	MarginCoin  string `json:"marginCoin"`
	Size        string `json:"size"`
	Price       string `json:"price,omitempty"`
	Side        string `json:"side"`
	TradeSide   string `json:"tradeSide"`
	OrderType   string `json:"orderType"`
	Force       string `json:"force,omitempty"`
	ClientOid   string `json:"clientOid,omitempty"`
}

type orderResult struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

// PlaceOrder 双向持仓模式下单
// 开多 buy/open，开空 sell/open，平多 buy/close，平空 sell/close：平仓时 side 取持仓方向。
func (c *Gateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	payload := orderPayload{
		Symbol:      dsvc.ToVenueSymbol(req.Symbol, model.VenueBitget),
		ProductType: productType,
		MarginMode:  "crossed",
		MarginCoin:  marginCoin,
		Size:        dsvc.FormatDecimal(req.Quantity),
		Side:        strings.ToLower(string(req.Side)),
		TradeSide:   "open",
		OrderType:   "limit",
		ClientOid:   req.ClientOrderID,
	}
	if req.ReduceOnly {
		payload.TradeSide = "close"
		payload.Side = "buy"
		if req.PositionSide == model.PositionShort {
			payload.Side = "sell"
		}
	}
	if req.Type == model.OrderTypeMarket {
		payload.OrderType = "market"
	} else {
		payload.Price = dsvc.FormatDecimal(req.Price)
		payload.Force = "gtc"
	}

	body, err := c.signedJSONRequest(ctx, "/api/v2/mix/order/place-order", payload)
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}
	var res orderResult
	if err := decode(body, &res); err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}
	if res.OrderID == "" {
		return "", fmt.Errorf("place order failed: empty order id")
	}

	log.Info().
		Str("exchange", model.VenueBitget).
		Str("symbol", payload.Symbol).
		Str("side", payload.Side).
		Str("tradeSide", payload.TradeSide).
		Str("type", payload.OrderType).
		Str("size", payload.Size).
		Str("price", payload.Price).
		Str("orderID", res.OrderID).
		Msg("order placed")

	return res.OrderID, nil
}
