package bybit

import (
	"context"
	"fmt"
	"net/url"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

const instrumentsMaxPages = 10

type tickerItem struct {
	Symbol          string `json:"symbol"`
	LastPrice       string `json:"lastPrice"`
	PrevPrice24h    string `json:"prevPrice24h"`
	HighPrice24h    string `json:"highPrice24h"`
	LowPrice24h     string `json:"lowPrice24h"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type instrumentItem struct {
	Symbol          string `json:"symbol"`
	ContractType    string `json:"contractType"`
	Status          string `json:"status"`
	QuoteCoin       string `json:"quoteCoin"`
	FundingInterval int    `json:"fundingInterval"` // 分钟
	LotSizeFilter   struct {
		MinOrderQty string `json:"minOrderQty"`
		MaxOrderQty string `json:"maxOrderQty"`
		QtyStep     string `json:"qtyStep"`
	} `json:"lotSizeFilter"`
}

func (c *Gateway) tickers(ctx context.Context, symbol string) ([]tickerItem, error) {
	params := url.Values{"category": {category}}
	if symbol != "" {
		params.Set("symbol", dsvc.ToVenueSymbol(symbol, model.VenueBybit))
	}
	body, err := c.publicRequest(ctx, "/v5/market/tickers", params)
	if err != nil {
		return nil, fmt.Errorf("tickers: %w", err)
	}
	var res listResult[tickerItem]
	if err := decode(body, &res); err != nil {
		return nil, err
	}
	return res.List, nil
}

// instruments 永续 USDT 合约，按 cursor 翻页
func (c *Gateway) instruments(ctx context.Context) ([]instrumentItem, error) {
	out := make([]instrumentItem, 0)
	cursor := ""
	for page := 0; page < instrumentsMaxPages; page++ {
		params := url.Values{"category": {category}, "limit": {"1000"}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		body, err := c.publicRequest(ctx, "/v5/market/instruments-info", params)
		if err != nil {
			return nil, fmt.Errorf("instruments info: %w", err)
		}
		var res listResult[instrumentItem]
		if err := decode(body, &res); err != nil {
			return nil, err
		}
		for _, in := range res.List {
			if in.ContractType == "LinearPerpetual" && in.QuoteCoin == "USDT" && in.Status == "Trading" {
				out = append(out, in)
			}
		}
		if res.NextPageCursor == "" {
			break
		}
		cursor = res.NextPageCursor
	}
	return out, nil
}

// GetFundingRates tickers 取费率，instruments-info 取结算周期
func (c *Gateway) GetFundingRates(ctx context.Context) ([]model.FundingRate, error) {
	rows, err := c.tickers(ctx, "")
	if err != nil {
		return nil, err
	}
	intervals := map[string]int{}
	if ins, err := c.instruments(ctx); err == nil {
		for _, in := range ins {
			intervals[in.Symbol] = in.FundingInterval / 60
		}
	}

	out := make([]model.FundingRate, 0, len(rows))
	for _, t := range rows {
		if t.FundingRate == "" {
			continue
		}
		interval := intervals[t.Symbol]
		if interval <= 0 {
			interval = dsvc.DefaultIntervalHours
		}
		out = append(out, model.FundingRate{
			Venue:          model.VenueBybit,
			Symbol:         dsvc.NormalizeSymbol(t.Symbol, model.VenueBybit),
			Rate:           exchange.ParseFloat(t.FundingRate),
			IntervalHours:  interval,
			NextSettlement: exchange.MillisToTime(exchange.ParseInt(t.NextFundingTime)),
		})
	}
	return out, nil
}

// GetPrices symbol 为空时取全部合约行情
func (c *Gateway) GetPrices(ctx context.Context, symbol string) ([]model.Price, error) {
	rows, err := c.tickers(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]model.Price, 0, len(rows))
	for _, t := range rows {
		last := exchange.ParseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		out = append(out, model.Price{
			Venue:        model.VenueBybit,
			Symbol:       dsvc.NormalizeSymbol(t.Symbol, model.VenueBybit),
			LastPrice:    last,
			DecimalScale: dsvc.DecimalScale(t.LastPrice, t.PrevPrice24h, t.HighPrice24h, t.LowPrice24h),
		})
	}
	return out, nil
}

// GetInstrumentLimits lotSizeFilter，按币下单
func (c *Gateway) GetInstrumentLimits(ctx context.Context) ([]model.InstrumentLimit, error) {
	ins, err := c.instruments(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.InstrumentLimit, 0, len(ins))
	for _, in := range ins {
		out = append(out, model.InstrumentLimit{
			Venue:         model.VenueBybit,
			Symbol:        dsvc.NormalizeSymbol(in.Symbol, model.VenueBybit),
			MinQty:        exchange.ParseFloat(in.LotSizeFilter.MinOrderQty),
			MaxQty:        exchange.ParseFloat(in.LotSizeFilter.MaxOrderQty),
			StepSize:      exchange.ParseFloat(in.LotSizeFilter.QtyStep),
			ContractValue: 1,
		})
	}
	return out, nil
}
