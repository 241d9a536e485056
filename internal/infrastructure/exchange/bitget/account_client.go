package bitget

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

const (
	billPageSize = 100
	billMaxPages = 20
)

type positionData struct {
	Symbol       string `json:"symbol"`
	HoldSide     string `json:"holdSide"`
	Total        string `json:"total"`
	OpenPriceAvg string `json:"openPriceAvg"`
	MarkPrice    string `json:"markPrice"`
	MarginSize   string `json:"marginSize"`
	UnrealizedPL string `json:"unrealizedPL"`
	Leverage     string `json:"leverage"`
}

type billPage struct {
	Bills []billData `json:"bills"`
	EndID string     `json:"endId"`
}

type billData struct {
	BillID       string `json:"billId"`
	Symbol       string `json:"symbol"`
	Amount       string `json:"amount"`
	Fee          string `json:"fee"`
	BusinessType string `json:"businessType"`
	CTime        string `json:"cTime"`
}

// GetPositions all-position，数量单位为币
func (c *Gateway) GetPositions(ctx context.Context) ([]model.Position, error) {
	params := url.Values{"productType": {productType}, "marginCoin": {marginCoin}}
	body, err := c.signedQueryRequest(ctx, "/api/v2/mix/position/all-position", params)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	var rows []positionData
	if err := decode(body, &rows); err != nil {
		return nil, err
	}

	out := make([]model.Position, 0, len(rows))
	for _, p := range rows {
		total := exchange.ParseFloat(p.Total)
		if total <= 0 {
			continue
		}
		side := model.PositionLong
		if p.HoldSide == "short" {
			side = model.PositionShort
		}
		out = append(out, model.Position{
			Venue:         model.VenueBitget,
			Symbol:        dsvc.NormalizeSymbol(p.Symbol, model.VenueBitget),
			Side:          side,
			Quantity:      total,
			EntryPrice:    exchange.ParseFloat(p.OpenPriceAvg),
			MarkPrice:     exchange.ParseFloat(p.MarkPrice),
			Margin:        exchange.ParseFloat(p.MarginSize),
			UnrealizedPnl: exchange.ParseFloat(p.UnrealizedPL),
			Leverage:      int(exchange.ParseFloat(p.Leverage)),
		})
	}
	return out, nil
}

// SetLeverage 全仓模式下多空同时设置
func (c *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	payload := map[string]string{
		"symbol":      dsvc.ToVenueSymbol(symbol, model.VenueBitget),
		"productType": productType,
		"marginCoin":  marginCoin,
		"leverage":    strconv.Itoa(leverage),
	}
	body, err := c.signedJSONRequest(ctx, "/api/v2/mix/account/set-leverage", payload)
	if err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	if err := decode(body, nil); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// GetIncome /api/v2/mix/account/bill，按 endId 向前翻页
// contract_settle_fee 为资金费；平仓类流水 amount 记为已实现盈亏；fee 记为手续费。
func (c *Gateway) GetIncome(ctx context.Context, since time.Time) ([]model.Bill, error) {
	out := make([]model.Bill, 0)
	idLessThan := ""
	for page := 0; page < billMaxPages; page++ {
		params := url.Values{}
		params.Set("productType", productType)
		params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
		params.Set("limit", strconv.Itoa(billPageSize))
		if idLessThan != "" {
			params.Set("idLessThan", idLessThan)
		}
		body, err := c.signedQueryRequest(ctx, "/api/v2/mix/account/bill", params)
		if err != nil {
			return nil, fmt.Errorf("bills: %w", err)
		}
		var p billPage
		if err := decode(body, &p); err != nil {
			return nil, err
		}
		out = append(out, billsFromRows(p.Bills)...)
		if len(p.Bills) < billPageSize || p.EndID == "" {
			break
		}
		idLessThan = p.EndID
	}
	return out, nil
}

func billsFromRows(rows []billData) []model.Bill {
	out := make([]model.Bill, 0, len(rows))
	for _, r := range rows {
		symbol := dsvc.NormalizeSymbol(r.Symbol, model.VenueBitget)
		ts := exchange.MillisToTime(exchange.ParseInt(r.CTime))
		amount := exchange.ParseFloat(r.Amount)
		switch {
		case r.BusinessType == "contract_settle_fee":
			out = append(out, model.Bill{Venue: model.VenueBitget, Symbol: symbol, Type: model.IncomeFundingFee, Amount: amount, Time: ts})
			continue
		case strings.HasPrefix(r.BusinessType, "close_") || strings.HasPrefix(r.BusinessType, "burst_"):
			if amount != 0 {
				out = append(out, model.Bill{Venue: model.VenueBitget, Symbol: symbol, Type: model.IncomeRealizedPnl, Amount: amount, Time: ts})
			}
		}
		if fee := exchange.ParseFloat(r.Fee); fee != 0 {
			out = append(out, model.Bill{Venue: model.VenueBitget, Symbol: symbol, Type: model.IncomeCommission, Amount: fee, Time: ts})
		}
	}
	return out
}
