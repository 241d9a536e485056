package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

type orderPayload struct {
	InstID     string `json:"instId"`
	TdMode     string `json:"tdMode"`
	Side       string `json:"side"`
	PosSide    string `json:"posSide,omitempty"`
	OrdType    string `json:"ordType"`
	Sz         string `json:"sz"`
	Px         string `json:"px,omitempty"`
	ClOrdID    string `json:"clOrdId,omitempty"`
	ReduceOnly bool   `json:"reduceOnly,omitempty"`
}

type orderResult struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// PlaceOrder /api/v5/trade/order，全仓下单，数量单位为张
// 双向持仓账户传 posSide，买卖模式下平仓用 reduceOnly。
func (c *Gateway) PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	instID := dsvc.ToVenueSymbol(req.Symbol, model.VenueOKX)
	payload := orderPayload{
		InstID:  instID,
		TdMode:  "cross",
		Side:    strings.ToLower(string(req.Side)),
		OrdType: "limit",
		Sz:      dsvc.FormatDecimal(req.Quantity),
		ClOrdID: req.ClientOrderID,
	}
	if req.Type == model.OrderTypeMarket {
		payload.OrdType = "market"
	} else {
		payload.Px = dsvc.FormatDecimal(req.Price)
	}
	if c.longShortMode(ctx) {
		payload.PosSide = strings.ToLower(string(req.PositionSide))
	} else {
		payload.ReduceOnly = req.ReduceOnly
	}

	body, err := c.signedJSONRequest(ctx, http.MethodPost, "/api/v5/trade/order", payload)
	if err != nil {
		return "", fmt.Errorf("place order failed: %w", err)
	}
	rows, err := decodeData[orderResult](body)
	if err != nil {
		// code=1 时 data[0].sCode 才是具体原因
		if results, e := decodeOrderResults(body); e == nil && len(results) > 0 && results[0].SCode != "0" {
			return "", exchange.Rejected("okx", results[0].SCode, results[0].SMsg)
		}
		return "", fmt.Errorf("place order failed: %w", err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("place order failed: empty response")
	}
	if rows[0].SCode != "" && rows[0].SCode != "0" {
		return "", exchange.Rejected("okx", rows[0].SCode, rows[0].SMsg)
	}

	log.Info().
		Str("exchange", model.VenueOKX).
		Str("symbol", instID).
		Str("side", payload.Side).
		Str("type", payload.OrdType).
		Str("size", payload.Sz).
		Str("price", payload.Px).
		Str("orderID", rows[0].OrdID).
		Msg("order placed")

	return rows[0].OrdID, nil
}

// longShortMode 查询一次持仓模式并缓存，失败时按买卖模式处理且下次重试
func (c *Gateway) longShortMode(ctx context.Context) bool {
	c.modeMu.Lock()
	defer c.modeMu.Unlock()
	if c.modeKnown {
		return c.longShort
	}
	body, err := c.signedQueryRequest(ctx, "/api/v5/account/config", nil)
	if err != nil {
		log.Warn().Err(err).Msg("okx position mode query failed, assuming net mode")
		return false
	}
	rows, err := decodeData[accountConfig](body)
	if err != nil || len(rows) == 0 {
		return false
	}
	c.longShort = rows[0].PosMode == "long_short_mode"
	c.modeKnown = true
	return c.longShort
}

// decodeOrderResults 忽略外层 code，直接取 data
func decodeOrderResults(body []byte) ([]orderResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	var out []orderResult
	if len(env.Data) == 0 {
		return out, nil
	}
	err := json.Unmarshal(env.Data, &out)
	return out, err
}
