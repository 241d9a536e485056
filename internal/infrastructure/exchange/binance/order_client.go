package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	Code          int    `json:"code"`
	Msg           string `json:"msg"`
}

type dualSideResponse struct {
	DualSidePosition bool `json:"dualSidePosition"`
}

// PlaceOrder /fapi/v1/order
// 双向持仓模式下传 positionSide，单向模式下平仓用 reduceOnly。
func (c *Gateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	symbol := dsvc.ToVenueSymbol(req.Symbol, model.VenueBinance)

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(req.Side))
	params.Set("quantity", dsvc.FormatDecimal(req.Quantity))
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	if req.Type == model.OrderTypeMarket {
		params.Set("type", "MARKET")
	} else {
		params.Set("type", "LIMIT")
		params.Set("timeInForce", "GTC")
		params.Set("price", dsvc.FormatDecimal(req.Price))
	}

	if c.hedgeMode(ctx) {
		params.Set("positionSide", string(req.PositionSide))
	} else if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	body, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse order response failed: %w", err)
	}
	if resp.OrderID == 0 {
		return "", exchange.Rejected(model.VenueBinance, strconv.Itoa(resp.Code), resp.Msg)
	}

	log.Info().
		Str("exchange", model.VenueBinance).
		Str("symbol", symbol).
		Str("side", string(req.Side)).
		Str("type", string(req.Type)).
		Float64("quantity", req.Quantity).
		Float64("price", req.Price).
		Int64("orderID", resp.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	return strconv.FormatInt(resp.OrderID, 10), nil
}

// hedgeMode 查询一次持仓模式并缓存，查询失败按单向模式处理且下次重试
func (c *Gateway) hedgeMode(ctx context.Context) bool {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	if c.modeKnown {
		return c.dualSide
	}
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/positionSide/dual", nil)
	if err != nil {
		log.Warn().Err(err).Msg("binance position mode query failed, assuming one-way")
		return false
	}
	var resp dualSideResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	c.dualSide = resp.DualSidePosition
	c.modeKnown = true
	return c.dualSide
}
