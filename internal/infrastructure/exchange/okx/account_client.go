package okx

import (
	"context"
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

const (
	billPageSize = 100
	billMaxPages = 20
	billFunding  = "8"
)

type positionData struct {
	InstID  string `json:"instId"`
	Pos     string `json:"pos"`
	PosSide string `json:"posSide"`
	AvgPx   string `json:"avgPx"`
	MarkPx  string `json:"markPx"`
	Margin  string `json:"margin"`
	Imr     string `json:"imr"`
	Upl     string `json:"upl"`
	Lever   string `json:"lever"`
}

type billData struct {
	BillID string `json:"billId"`
	InstID string `json:"instId"`
	Type   string `json:"type"`
	Pnl    string `json:"pnl"`
	Fee    string `json:"fee"`
	Ts     string `json:"ts"`
}

type accountConfig struct {
	PosMode string `json:"posMode"`
}

// GetPositions /api/v5/account/positions，数量单位为张
func (c *Gateway) GetPositions(ctx context.Context) ([]model.Position, error) {
	body, err := c.signedQueryRequest(ctx, "/api/v5/account/positions", url.Values{"instType": {"SWAP"}})
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	rows, err := decodeData[positionData](body)
	if err != nil {
		return nil, err
	}

	out := make([]model.Position, 0, len(rows))
	for _, p := range rows {
		pos := exchange.ParseFloat(p.Pos)
		if pos == 0 {
			continue
		}
		side := model.PositionLong
		switch p.PosSide {
		case "short":
			side = model.PositionShort
		case "long":
		default:
			if pos < 0 {
				side = model.PositionShort
			}
		}
		// 全仓 margin 为空，用初始保证金
		margin := exchange.ParseFloat(p.Margin)
		if margin == 0 {
			margin = exchange.ParseFloat(p.Imr)
		}
		out = append(out, model.Position{
			Venue:         model.VenueOKX,
			Symbol:        dsvc.NormalizeSymbol(p.InstID, model.VenueOKX),
			Side:          side,
			Quantity:      math.Abs(pos),
			EntryPrice:    exchange.ParseFloat(p.AvgPx),
			MarkPrice:     exchange.ParseFloat(p.MarkPx),
			Margin:        margin,
			UnrealizedPnl: exchange.ParseFloat(p.Upl),
			Leverage:      int(exchange.ParseFloat(p.Lever)),
		})
	}
	return out, nil
}

// SetLeverage 全仓模式设置杠杆
func (c *Gateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	payload := map[string]string{
		"instId":  dsvc.ToVenueSymbol(symbol, model.VenueOKX),
		"lever":   strconv.Itoa(leverage),
		"mgnMode": "cross",
	}
	body, err := c.signedJSONRequest(ctx, http.MethodPost, "/api/v5/account/set-leverage", payload)
	if err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	if _, err := decodeData[map[string]any](body); err != nil {
		return fmt.Errorf("set leverage: %w", err)
	}
	return nil
}

// GetIncome /api/v5/account/bills，按 billId 向前翻页
// type 8 为资金费；其余类型 pnl 记为已实现盈亏，fee 记为手续费。
func (c *Gateway) GetIncome(ctx context.Context, since time.Time) ([]model.Bill, error) {
	out := make([]model.Bill, 0)
	after := ""
	for page := 0; page < billMaxPages; page++ {
		params := url.Values{}
		params.Set("instType", "SWAP")
		params.Set("begin", strconv.FormatInt(since.UnixMilli(), 10))
		params.Set("limit", strconv.Itoa(billPageSize))
		if after != "" {
			params.Set("after", after)
		}
		body, err := c.signedQueryRequest(ctx, "/api/v5/account/bills", params)
		if err != nil {
			return nil, fmt.Errorf("bills: %w", err)
		}
		rows, err := decodeData[billData](body)
		if err != nil {
			return nil, err
		}
		out = append(out, billsFromRows(rows)...)
		if len(rows) < billPageSize {
			break
		}
		after = rows[len(rows)-1].BillID
	}
	return out, nil
}

func billsFromRows(rows []billData) []model.Bill {
	out := make([]model.Bill, 0, len(rows))
	for _, r := range rows {
		symbol := dsvc.NormalizeSymbol(r.InstID, model.VenueOKX)
		ts := exchange.MillisToTime(exchange.ParseInt(r.Ts))
		pnl := exchange.ParseFloat(r.Pnl)
		if r.Type == billFunding {
			out = append(out, model.Bill{Venue: model.VenueOKX, Symbol: symbol, Type: model.IncomeFundingFee, Amount: pnl, Time: ts})
			continue
		}
		if pnl != 0 {
			out = append(out, model.Bill{Venue: model.VenueOKX, Symbol: symbol, Type: model.IncomeRealizedPnl, Amount: pnl, Time: ts})
		}
		if fee := exchange.ParseFloat(r.Fee); fee != 0 {
			out = append(out, model.Bill{Venue: model.VenueOKX, Symbol: symbol, Type: model.IncomeCommission, Amount: fee, Time: ts})
		}
	}
	return out
}
