package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// FundingFeed 订阅 tickers.{symbol}，snapshot/delta 中带有 fundingRate
type FundingFeed struct {
	wsURL   string // e.g. wss://stream.bybit.com/v5/public/linear
	symbols []string
}

func NewFundingFeed(wsURL string, symbols []string) *FundingFeed {
	return &FundingFeed{wsURL: strings.TrimSpace(wsURL), symbols: symbols}
}

func (f *FundingFeed) Name() string { return model.VenueBybit }

type subReq struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type tickerPush struct {
	Symbol          string `json:"symbol"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// dataList data 可能是对象也可能是数组
type dataList []tickerPush

func (d *dataList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = nil
		return nil
	}
	switch b[0] {
	case '[':
		var arr []tickerPush
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*d = arr
		return nil
	case '{':
		var one tickerPush
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*d = dataList{one}
		return nil
	default:
		return fmt.Errorf("unexpected data json: %s", string(b))
	}
}

type tickerMsg struct {
	Topic string   `json:"topic"`
	Type  string   `json:"type"`
	Data  dataList `json:"data"`

	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	Op      string `json:"op,omitempty"`
}

func (f *FundingFeed) Subscribe(ctx context.Context) (<-chan []model.FundingRate, error) {
	if f.wsURL == "" {
		return nil, errors.New("bybit ws_url empty")
	}
	topics := make([]string, 0, len(f.symbols))
	for _, s := range f.symbols {
		if s = strings.TrimSpace(s); s != "" {
			topics = append(topics, "tickers."+dsvc.ToVenueSymbol(s, model.VenueBybit))
		}
	}
	if len(topics) == 0 {
		return nil, errors.New("no valid symbols for bybit topics")
	}

	out := make(chan []model.FundingRate, 16)
	go exchange.RunFundingStream(ctx, exchange.StreamConfig{
		Name: f.Name(),
		URL:  f.wsURL,
		OnConnect: func(conn *websocket.Conn) error {
			return conn.WriteJSON(subReq{Op: "subscribe", Args: topics})
		},
		Parse: ParseTickerPush,
		Ping:  func(conn *websocket.Conn) error { return conn.WriteJSON(subReq{Op: "ping"}) },
	}, out)
	return out, nil
}

// ParseTickerPush delta 中没有 fundingRate 的条目跳过
func ParseTickerPush(b []byte) ([]model.FundingRate, error) {
	var msg tickerMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, err
	}
	if msg.Success != nil {
		if !*msg.Success {
			log.Error().Str("feed", model.VenueBybit).Str("ret_msg", msg.RetMsg).Msg("subscribe not success")
		}
		return nil, nil
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") {
		return nil, nil
	}
	out := make([]model.FundingRate, 0, len(msg.Data))
	for _, d := range msg.Data {
		if d.FundingRate == "" {
			continue
		}
		symbol := d.Symbol
		if symbol == "" {
			symbol = strings.TrimPrefix(msg.Topic, "tickers.")
		}
		out = append(out, model.FundingRate{
			Venue:          model.VenueBybit,
			Symbol:         dsvc.NormalizeSymbol(symbol, model.VenueBybit),
			Rate:           exchange.ParseFloat(d.FundingRate),
			NextSettlement: exchange.MillisToTime(exchange.ParseInt(d.NextFundingTime)),
		})
	}
	return out, nil
}
