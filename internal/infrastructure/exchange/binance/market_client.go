package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

type premiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
}

type fundingInfo struct {
	Symbol               string `json:"symbol"`
	FundingIntervalHours int    `json:"fundingIntervalHours"`
}

type ticker24h struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	OpenPrice string `json:"openPrice"`
	HighPrice string `json:"highPrice"`
	LowPrice  string `json:"lowPrice"`
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
		QuoteAsset   string `json:"quoteAsset"`
		Filters      []struct {
			FilterType string `json:"filterType"`
			MinQty     string `json:"minQty"`
			MaxQty     string `json:"maxQty"`
			StepSize   string `json:"stepSize"`
		} `json:"filters"`
	} `json:"symbols"`
}

// GetFundingRates premiumIndex 取费率，fundingInfo 取非 8 小时的结算周期
func (c *Gateway) GetFundingRates(ctx context.Context) ([]model.FundingRate, error) {
	body, err := c.publicRequest(ctx, "/fapi/v1/premiumIndex", nil)
	if err != nil {
		return nil, fmt.Errorf("premium index: %w", err)
	}
	var idx []premiumIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("parse premium index: %w", err)
	}

	intervals := map[string]int{}
	if body, err := c.publicRequest(ctx, "/fapi/v1/fundingInfo", nil); err == nil {
		var infos []fundingInfo
		if json.Unmarshal(body, &infos) == nil {
			for _, fi := range infos {
				intervals[fi.Symbol] = fi.FundingIntervalHours
			}
		}
	}

	out := make([]model.FundingRate, 0, len(idx))
	for _, p := range idx {
		if p.LastFundingRate == "" {
			continue
		}
		interval := intervals[p.Symbol]
		if interval <= 0 {
			interval = dsvc.DefaultIntervalHours
		}
		out = append(out, model.FundingRate{
			Venue:          model.VenueBinance,
			Symbol:         dsvc.NormalizeSymbol(p.Symbol, model.VenueBinance),
			Rate:           exchange.ParseFloat(p.LastFundingRate),
			IntervalHours:  interval,
			NextSettlement: exchange.MillisToTime(p.NextFundingTime),
		})
	}
	return out, nil
}

// GetPrices 24 小时行情，价格精度取 open/high/low/last 中最大的小数位
func (c *Gateway) GetPrices(ctx context.Context, symbol string) ([]model.Price, error) {
	var params url.Values
	if symbol != "" {
		params = url.Values{"symbol": {dsvc.ToVenueSymbol(symbol, model.VenueBinance)}}
	}
	body, err := c.publicRequest(ctx, "/fapi/v1/ticker/24hr", params)
	if err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}

	var tickers []ticker24h
	if symbol != "" {
		var t ticker24h
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("parse ticker: %w", err)
		}
		tickers = []ticker24h{t}
	} else if err := json.Unmarshal(body, &tickers); err != nil {
		return nil, fmt.Errorf("parse tickers: %w", err)
	}

	out := make([]model.Price, 0, len(tickers))
	for _, t := range tickers {
		last := exchange.ParseFloat(t.LastPrice)
		if last <= 0 {
			continue
		}
		out = append(out, model.Price{
			Venue:        model.VenueBinance,
			Symbol:       dsvc.NormalizeSymbol(t.Symbol, model.VenueBinance),
			LastPrice:    last,
			DecimalScale: dsvc.DecimalScale(t.LastPrice, t.OpenPrice, t.HighPrice, t.LowPrice),
		})
	}
	return out, nil
}

// GetInstrumentLimits LOT_SIZE 过滤器
func (c *Gateway) GetInstrumentLimits(ctx context.Context) ([]model.InstrumentLimit, error) {
	body, err := c.publicRequest(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}
	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse exchange info: %w", err)
	}

	out := make([]model.InstrumentLimit, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.ContractType != "PERPETUAL" || !strings.EqualFold(s.Status, "TRADING") {
			continue
		}
		for _, f := range s.Filters {
			if f.FilterType != "LOT_SIZE" {
				continue
			}
			out = append(out, model.InstrumentLimit{
				Venue:         model.VenueBinance,
				Symbol:        dsvc.NormalizeSymbol(s.Symbol, model.VenueBinance),
				MinQty:        exchange.ParseFloat(f.MinQty),
				MaxQty:        exchange.ParseFloat(f.MaxQty),
				StepSize:      exchange.ParseFloat(f.StepSize),
				ContractValue: 1,
			})
		}
	}
	return out, nil
}

// GetKlines /fapi/v1/klines，行格式 [openTime, open, high, low, close, volume, ...]
func (c *Gateway) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	params := url.Values{
		"symbol":   {dsvc.ToVenueSymbol(symbol, model.VenueBinance)},
		"interval": {interval},
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.publicRequest(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse klines: %w", err)
	}

	normalized := dsvc.NormalizeSymbol(symbol, model.VenueBinance)
	out := make([]model.Kline, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var openTime int64
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		out = append(out, model.Kline{
			Symbol:   normalized,
			Interval: interval,
			OpenTime: exchange.MillisToTime(openTime),
			Open:     rawFloat(row[1]),
			High:     rawFloat(row[2]),
			Low:      rawFloat(row[3]),
			Close:    rawFloat(row[4]),
			Volume:   rawFloat(row[5]),
		})
	}
	return out, nil
}

// rawFloat 价格字段是字符串，兼容数字
func rawFloat(raw json.RawMessage) float64 {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return exchange.ParseFloat(s)
	}
	var f float64
	_ = json.Unmarshal(raw, &f)
	return f
}
