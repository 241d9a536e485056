package bitget

import (
	"context"
	"fmt"
	"net/url"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

type fundRate struct {
	Symbol              string `json:"symbol"`
	FundingRate         string `json:"fundingRate"`
	FundingRateInterval string `json:"fundingRateInterval"`
	NextUpdate          string `json:"nextUpdate"`
}

type ticker struct {
	Symbol  string `json:"symbol"`
	LastPr  string `json:"lastPr"`
	Open24h string `json:"open24h"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
}

type contract struct {
	Symbol         string `json:"symbol"`
	SymbolStatus   string `json:"symbolStatus"`
	QuoteCoin      string `json:"quoteCoin"`
	MinTradeNum    string `json:"minTradeNum"`
	SizeMultiplier string `json:"sizeMultiplier"`
	MaxOrderQty    string `json:"maxOrderQty"`
}

// GetFundingRates current-fund-rate 同时返回结算周期
func (c *Gateway) GetFundingRates(ctx context.Context) ([]model.FundingRate, error) {
	body, err := c.publicRequest(ctx, "/api/v2/mix/market/current-fund-rate", url.Values{"productType": {productType}})
	if err != nil {
		return nil, fmt.Errorf("funding rate: %w", err)
	}
	var rows []fundRate
	if err := decode(body, &rows); err != nil {
		return nil, err
	}

	out := make([]model.FundingRate, 0, len(rows))
	for _, r := range rows {
		if r.FundingRate == "" {
			continue
		}
		interval := int(exchange.ParseInt(r.FundingRateInterval))
		if interval <= 0 {
			interval = dsvc.DefaultIntervalHours
		}
		out = append(out, model.FundingRate{
			Venue:          model.VenueBitget,
			Symbol:         dsvc.NormalizeSymbol(r.Symbol, model.VenueBitget),
			Rate:           exchange.ParseFloat(r.FundingRate),
			IntervalHours:  interval,
			NextSettlement: exchange.MillisToTime(exchange.ParseInt(r.NextUpdate)),
		})
	}
	return out, nil
}

// GetPrices symbol 为空时取全部合约行情
func (c *Gateway) GetPrices(ctx context.Context, symbol string) ([]model.Price, error) {
	path := "/api/v2/mix/market/tickers"
	params := url.Values{"productType": {productType}}
	if symbol != "" {
		path = "/api/v2/mix/market/ticker"
		params.Set("symbol", dsvc.ToVenueSymbol(symbol, model.VenueBitget))
	}
	body, err := c.publicRequest(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}
	var rows []ticker
	if err := decode(body, &rows); err != nil {
		return nil, err
	}

	out := make([]model.Price, 0, len(rows))
	for _, t := range rows {
		last := exchange.ParseFloat(t.LastPr)
		if last <= 0 {
			continue
		}
		out = append(out, model.Price{
			Venue:        model.VenueBitget,
			Symbol:       dsvc.NormalizeSymbol(t.Symbol, model.VenueBitget),
			LastPrice:    last,
			DecimalScale: dsvc.DecimalScale(t.LastPr, t.Open24h, t.High24h, t.Low24h),
		})
	}
	return out, nil
}

// GetInstrumentLimits 按币下单，sizeMultiplier 为数量步长
func (c *Gateway) GetInstrumentLimits(ctx context.Context) ([]model.InstrumentLimit, error) {
	body, err := c.publicRequest(ctx, "/api/v2/mix/market/contracts", url.Values{"productType": {productType}})
	if err != nil {
		return nil, fmt.Errorf("contracts: %w", err)
	}
	var rows []contract
	if err := decode(body, &rows); err != nil {
		return nil, err
	}

	out := make([]model.InstrumentLimit, 0, len(rows))
	for _, r := range rows {
		if r.SymbolStatus != "" && r.SymbolStatus != "normal" {
			continue
		}
		out = append(out, model.InstrumentLimit{
			Venue:         model.VenueBitget,
			Symbol:        dsvc.NormalizeSymbol(r.Symbol, model.VenueBitget),
			MinQty:        exchange.ParseFloat(r.MinTradeNum),
			MaxQty:        exchange.ParseFloat(r.MaxOrderQty),
			StepSize:      exchange.ParseFloat(r.SizeMultiplier),
			ContractValue: 1,
		})
	}
	return out, nil
}
