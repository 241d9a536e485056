package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

type positionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Leverage         string `json:"leverage"`
	IsolatedMargin   string `json:"isolatedMargin"`
	Notional         string `json:"notional"`
	PositionSide     string `json:"positionSide"`
}

type incomeRecord struct {
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Time       int64  `json:"time"`
}

// GetPositions /fapi/v2/positionRisk，只返回非零持仓
func (c *Gateway) GetPositions(ctx context.Context) ([]model.Position, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil)
	if err != nil {
		return nil, fmt.Errorf("position risk: %w", err)
	}
	var rows []positionRisk
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse position risk: %w", err)
	}

	out := make([]model.Position, 0)
	for _, r := range rows {
		amt := exchange.ParseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		side := model.PositionLong
		switch {
		case r.PositionSide == "SHORT":
			side = model.PositionShort
		case r.PositionSide != "LONG" && amt < 0:
			side = model.PositionShort
		}
		leverage := int(exchange.ParseInt(r.Leverage))
		margin := exchange.ParseFloat(r.IsolatedMargin)
		if margin == 0 && leverage > 0 {
			margin = math.Abs(exchange.ParseFloat(r.Notional)) / float64(leverage)
		}
		out = append(out, model.Position{
			Venue:         model.VenueBinance,
			Symbol:        dsvc.NormalizeSymbol(r.Symbol, model.VenueBinance),
			Side:          side,
			Quantity:      math.Abs(amt),
			EntryPrice:    exchange.ParseFloat(r.EntryPrice),
			MarkPrice:     exchange.ParseFloat(r.MarkPrice),
			Margin:        margin,
			UnrealizedPnl: exchange.ParseFloat(r.UnRealizedProfit),
			Leverage:      leverage,
		})
	}
	return out, nil
}

// SetLeverage /fapi/v1/leverage
func (c *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", dsvc.ToVenueSymbol(symbol, model.VenueBinance))
	params.Set("leverage", strconv.Itoa(leverage))
	if _, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// GetIncome /fapi/v1/income，只保留资金费、手续费、已实现盈亏
func (c *Gateway) GetIncome(ctx context.Context, since time.Time) ([]model.Bill, error) {
	params := url.Values{}
	params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
	params.Set("limit", "1000")
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v1/income", params)
	if err != nil {
		return nil, fmt.Errorf("income: %w", err)
	}
	var rows []incomeRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse income: %w", err)
	}

	out := make([]model.Bill, 0, len(rows))
	for _, r := range rows {
		var typ model.IncomeType
		switch r.IncomeType {
		case "FUNDING_FEE":
			typ = model.IncomeFundingFee
		case "COMMISSION":
			typ = model.IncomeCommission
		case "REALIZED_PNL":
			typ = model.IncomeRealizedPnl
		default:
			continue
		}
		out = append(out, model.Bill{
			Venue:  model.VenueBinance,
			Symbol: dsvc.NormalizeSymbol(r.Symbol, model.VenueBinance),
			Type:   typ,
			Amount: exchange.ParseFloat(r.Income),
			Time:   exchange.MillisToTime(r.Time),
		})
	}
	return out, nil
}
