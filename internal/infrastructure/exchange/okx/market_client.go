package okx

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

type fundingRateData struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	FundingTime     string `json:"fundingTime"`
	NextFundingTime string `json:"nextFundingTime"`
}

type tickerData struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	Open24h string `json:"open24h"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
}

type instrumentData struct {
	InstID    string `json:"instId"`
	SettleCcy string `json:"settleCcy"`
	CtType    string `json:"ctType"`
	CtVal     string `json:"ctVal"`
	MinSz     string `json:"minSz"`
	LotSz     string `json:"lotSz"`
	MaxLmtSz  string `json:"maxLmtSz"`
	State     string `json:"state"`
}

// usdtSwap 只处理 USDT 本位永续
func usdtSwap(instID string) bool {
	return strings.HasSuffix(instID, "-USDT-SWAP")
}

// toFundingRate fundingTime 为下一次结算，结算周期由相邻两次结算时间推出
func toFundingRate(d fundingRateData) model.FundingRate {
	settle := exchange.ParseInt(d.FundingTime)
	next := exchange.ParseInt(d.NextFundingTime)
	interval := dsvc.DefaultIntervalHours
	if settle > 0 && next > settle {
		if h := int(time.Duration(next-settle) * time.Millisecond / time.Hour); h > 0 {
			interval = h
		}
	}
	return model.FundingRate{
		Venue:          model.VenueOKX,
		Symbol:         dsvc.NormalizeSymbol(d.InstID, model.VenueOKX),
		Rate:           exchange.ParseFloat(d.FundingRate),
		IntervalHours:  interval,
		NextSettlement: exchange.MillisToTime(settle),
	}
}

// GetFundingRates /api/v5/public/funding-rate?instId=ANY
func (c *Gateway) GetFundingRates(ctx context.Context) ([]model.FundingRate, error) {
	body, err := c.publicRequest(ctx, "/api/v5/public/funding-rate", url.Values{"instId": {"ANY"}})
	if err != nil {
		return nil, fmt.Errorf("funding rate: %w", err)
	}
	rows, err := decodeData[fundingRateData](body)
	if err != nil {
		return nil, err
	}
	out := make([]model.FundingRate, 0, len(rows))
	for _, d := range rows {
		if !usdtSwap(d.InstID) || d.FundingRate == "" {
			continue
		}
		out = append(out, toFundingRate(d))
	}
	return out, nil
}

// GetPrices symbol 为空时取全部永续行情
func (c *Gateway) GetPrices(ctx context.Context, symbol string) ([]model.Price, error) {
	path := "/api/v5/market/tickers"
	params := url.Values{"instType": {"SWAP"}}
	if symbol != "" {
		path = "/api/v5/market/ticker"
		params = url.Values{"instId": {dsvc.ToVenueSymbol(symbol, model.VenueOKX)}}
	}
	body, err := c.publicRequest(ctx, path, params)
	if err != nil {
		return nil, fmt.Errorf("ticker: %w", err)
	}
	rows, err := decodeData[tickerData](body)
	if err != nil {
		return nil, err
	}

	out := make([]model.Price, 0, len(rows))
	for _, t := range rows {
		last := exchange.ParseFloat(t.Last)
		if !usdtSwap(t.InstID) || last <= 0 {
			continue
		}
		out = append(out, model.Price{
			Venue:        model.VenueOKX,
			Symbol:       dsvc.NormalizeSymbol(t.InstID, model.VenueOKX),
			LastPrice:    last,
			DecimalScale: dsvc.DecimalScale(t.Last, t.Open24h, t.High24h, t.Low24h),
		})
	}
	return out, nil
}

// GetInstrumentLimits 数量单位为张，ctVal 为每张对应的币数量
func (c *Gateway) GetInstrumentLimits(ctx context.Context) ([]model.InstrumentLimit, error) {
	body, err := c.publicRequest(ctx, "/api/v5/public/instruments", url.Values{"instType": {"SWAP"}})
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	rows, err := decodeData[instrumentData](body)
	if err != nil {
		return nil, err
	}

	out := make([]model.InstrumentLimit, 0, len(rows))
	for _, in := range rows {
		if in.SettleCcy != "USDT" || in.CtType != "linear" || in.State != "live" {
			continue
		}
		out = append(out, model.InstrumentLimit{
			Venue:         model.VenueOKX,
			Symbol:        dsvc.NormalizeSymbol(in.InstID, model.VenueOKX),
			MinQty:        exchange.ParseFloat(in.MinSz),
			MaxQty:        exchange.ParseFloat(in.MaxLmtSz),
			StepSize:      exchange.ParseFloat(in.LotSz),
			ContractValue: exchange.ParseFloat(in.CtVal),
		})
	}
	return out, nil
}
