package bybit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

const (
	// 110043: leverage not modified
	codeLeverageNotModified = 110043

	logPageSize = 50
	logMaxPages = 20
)

type positionItem struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"` // Buy / Sell / 空串表示无持仓
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	PositionIM    string `json:"positionIM"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	Leverage      string `json:"leverage"`
	PositionIdx   int    `json:"positionIdx"`
}

type transactionLog struct {
	Symbol          string `json:"symbol"`
	Type            string `json:"type"`
	Funding         string `json:"funding"`
	Fee             string `json:"fee"`
	CashFlow        string `json:"cashFlow"`
	TransactionTime string `json:"transactionTime"`
}

func (c *Gateway) positionList(ctx context.Context, symbol string) ([]positionItem, error) {
	params := url.Values{"category": {category}}
	if symbol != "" {
		params.Set("symbol", dsvc.ToVenueSymbol(symbol, model.VenueBybit))
	} else {
		params.Set("settleCoin", "USDT")
	}
	body, err := c.signedQueryRequest(ctx, "/v5/position/list", params)
	if err != nil {
		return nil, fmt.Errorf("position list: %w", err)
	}
	var res listResult[positionItem]
	if err := decode(body, &res); err != nil {
		return nil, err
	}
	return res.List, nil
}

// GetPositions /v5/position/list，只返回非零持仓
func (c *Gateway) GetPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := c.positionList(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]model.Position, 0, len(rows))
	for _, p := range rows {
		size := exchange.ParseFloat(p.Size)
		if size <= 0 || p.Side == "" {
			continue
		}
		side := model.PositionLong
		if p.Side == "Sell" {
			side = model.PositionShort
		}
		out = append(out, model.Position{
			Venue:         model.VenueBybit,
			Symbol:        dsvc.NormalizeSymbol(p.Symbol, model.VenueBybit),
			Side:          side,
			Quantity:      size,
			EntryPrice:    exchange.ParseFloat(p.AvgPrice),
			MarkPrice:     exchange.ParseFloat(p.MarkPrice),
			Margin:        exchange.ParseFloat(p.PositionIM),
			UnrealizedPnl: exchange.ParseFloat(p.UnrealisedPnl),
			Leverage:      int(exchange.ParseFloat(p.Leverage)),
		})
	}
	return out, nil
}

// SetLeverage 多空同时设置，杠杆未变化不算失败
func (c *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	lev := strconv.Itoa(leverage)
	payload := map[string]string{
		"category":     category,
		"symbol":       dsvc.ToVenueSymbol(symbol, model.VenueBybit),
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}
	body, err := c.signedJSONRequest(ctx, "/v5/position/set-leverage", payload)
	if err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	if err := decode(body, nil, codeLeverageNotModified); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// GetIncome 统一账户流水，SETTLEMENT 为资金费
func (c *Gateway) GetIncome(ctx context.Context, since time.Time) ([]model.Bill, error) {
	out := make([]model.Bill, 0)
	cursor := ""
	for page := 0; page < logMaxPages; page++ {
		params := url.Values{}
		params.Set("accountType", "UNIFIED")
		params.Set("category", category)
		params.Set("currency", "USDT")
		params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))
		params.Set("limit", strconv.Itoa(logPageSize))
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		body, err := c.signedQueryRequest(ctx, "/v5/account/transaction-log", params)
		if err != nil {
			return nil, fmt.Errorf("transaction log: %w", err)
		}
		var res listResult[transactionLog]
		if err := decode(body, &res); err != nil {
			return nil, err
		}
		out = append(out, billsFromLogs(res.List)...)
		if res.NextPageCursor == "" || len(res.List) < logPageSize {
			break
		}
		cursor = res.NextPageCursor
	}
	return out, nil
}

// billsFromLogs funding 为正表示收入；fee 为正表示支出
func billsFromLogs(rows []transactionLog) []model.Bill {
	out := make([]model.Bill, 0, len(rows))
	for _, r := range rows {
		symbol := dsvc.NormalizeSymbol(r.Symbol, model.VenueBybit)
		ts := exchange.MillisToTime(exchange.ParseInt(r.TransactionTime))
		switch r.Type {
		case "SETTLEMENT":
			// change = cashFlow - funding - fee，funding 为正表示支付
			out = append(out, model.Bill{Venue: model.VenueBybit, Symbol: symbol, Type: model.IncomeFundingFee, Amount: -exchange.ParseFloat(r.Funding), Time: ts})
		case "TRADE":
			if pnl := exchange.ParseFloat(r.CashFlow); pnl != 0 {
				out = append(out, model.Bill{Venue: model.VenueBybit, Symbol: symbol, Type: model.IncomeRealizedPnl, Amount: pnl, Time: ts})
			}
			if fee := exchange.ParseFloat(r.Fee); fee != 0 {
				out = append(out, model.Bill{Venue: model.VenueBybit, Symbol: symbol, Type: model.IncomeCommission, Amount: -fee, Time: ts})
			}
		}
	}
	return out
}
