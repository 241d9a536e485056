package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// FundingFeed 订阅 !markPrice@arr@1s，推送全市场资金费率
type FundingFeed struct {
	wsURL string // e.g. wss://fstream.binance.com
}

func NewFundingFeed(wsURL string, _ []string) *FundingFeed {
	return &FundingFeed{wsURL: strings.TrimSpace(wsURL)}
}

func (f *FundingFeed) Name() string { return model.VenueBinance }

type markPriceMsg struct {
	Event           string `json:"e"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

func (f *FundingFeed) Subscribe(ctx context.Context) (<-chan []model.FundingRate, error) {
	wsURL, err := buildStreamURL(f.wsURL)
	if err != nil {
		return nil, err
	}
	out := make(chan []model.FundingRate, 16)
	go f.run(ctx, wsURL, out)
	return out, nil
}

func buildStreamURL(base string) (string, error) {
	if base == "" {
		return "", errors.New("binance ws_url empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = "/ws/!markPrice@arr@1s"
	return u.String(), nil
}

// ParseMarkPrices 解析一条推送，跳过没有费率的合约
func ParseMarkPrices(b []byte) ([]model.FundingRate, error) {
	var msgs []markPriceMsg
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, err
	}
	out := make([]model.FundingRate, 0, len(msgs))
	for _, m := range msgs {
		if m.Symbol == "" || m.FundingRate == "" {
			continue
		}
		out = append(out, model.FundingRate{
			Venue:          model.VenueBinance,
			Symbol:         dsvc.NormalizeSymbol(m.Symbol, model.VenueBinance),
			Rate:           exchange.ParseFloat(m.FundingRate),
			NextSettlement: exchange.MillisToTime(m.NextFundingTime),
		})
	}
	return out, nil
}

func (f *FundingFeed) run(ctx context.Context, wsURL string, out chan<- []model.FundingRate) {
	exchange.RunFundingStream(ctx, exchange.StreamConfig{
		Name:  f.Name(),
		URL:   wsURL,
		Parse: ParseMarkPrices,
	}, out)
}
