package bitget

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gorilla/websocket"

	"fundarb/internal/domain/model"
	dsvc "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/exchange"
)

// FundingFeed 订阅合约 ticker 频道，推送中带有 fundingRate 与 nextFundingTime
type FundingFeed struct {
	wsURL   string // e.g. wss://ws.bitget.com/v2/ws/public
	symbols []string
}

func NewFundingFeed(wsURL string, symbols []string) *FundingFeed {
	return &FundingFeed{wsURL: strings.TrimSpace(wsURL), symbols: symbols}
}

func (f *FundingFeed) Name() string { return model.VenueBitget }

type subReq struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

type subArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type tickerMsg struct {
	Event  string       `json:"event,omitempty"`
	Action string       `json:"action"`
	Arg    subArg       `json:"arg"`
	Data   []tickerData `json:"data,omitempty"`
}

type tickerData struct {
	InstID          string `json:"instId"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

func (f *FundingFeed) Subscribe(ctx context.Context) (<-chan []model.FundingRate, error) {
	if f.wsURL == "" {
		return nil, errors.New("bitget ws_url empty")
	}
	if len(f.symbols) == 0 {
		return nil, errors.New("bitget funding feed needs symbols")
	}
	out := make(chan []model.FundingRate, 16)
	go exchange.RunFundingStream(ctx, exchange.StreamConfig{
		Name:      f.Name(),
		URL:       f.wsURL,
		OnConnect: f.subscribe,
		Parse:     ParseTickerPush,
		Ping:      exchange.TextPing("ping"),
	}, out)
	return out, nil
}

func (f *FundingFeed) subscribe(conn *websocket.Conn) error {
	req := subReq{Op: "subscribe"}
	for _, s := range f.symbols {
		req.Args = append(req.Args, subArg{
			InstType: productType,
			Channel:  "ticker",
			InstID:   dsvc.ToVenueSymbol(s, model.VenueBitget),
		})
	}
	return conn.WriteJSON(req)
}

// ParseTickerPush 结算周期不在推送中，IntervalHours 为 0 由缓存保留原值
func ParseTickerPush(b []byte) ([]model.FundingRate, error) {
	if string(b) == "pong" {
		return nil, nil
	}
	var msg tickerMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, err
	}
	if msg.Event != "" || msg.Arg.Channel != "ticker" {
		return nil, nil
	}
	out := make([]model.FundingRate, 0, len(msg.Data))
	for _, d := range msg.Data {
		if d.InstID == "" || d.FundingRate == "" {
			continue
		}
		out = append(out, model.FundingRate{
			Venue:          model.VenueBitget,
			Symbol:         dsvc.NormalizeSymbol(d.InstID, model.VenueBitget),
			Rate:           exchange.ParseFloat(d.FundingRate),
			NextSettlement: exchange.MillisToTime(exchange.ParseInt(d.NextFundingTime)),
		})
	}
	return out, nil
}
