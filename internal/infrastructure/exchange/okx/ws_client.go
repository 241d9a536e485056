package okx

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

// FundingFeed 订阅 funding-rate 频道，OKX 需要逐个合约订阅
type FundingFeed struct {
	wsURL   string // e.g. wss://ws.okx.com:8443/ws/v5/public
	symbols []string
}

func NewFundingFeed(wsURL string, symbols []string) *FundingFeed {
	return &FundingFeed{wsURL: strings.TrimSpace(wsURL), symbols: symbols}
}

func (f *FundingFeed) Name() string { return model.VenueOKX }

type subReq struct {
	Op   string   `json:"op"`
	Args []subArg `json:"args"`
}

type subArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type pushMsg struct {
	Event string            `json:"event,omitempty"`
	Arg   subArg            `json:"arg"`
	Data  []fundingRateData `json:"data,omitempty"`
}

func (f *FundingFeed) Subscribe(ctx context.Context) (<-chan []model.FundingRate, error) {
	if f.wsURL == "" {
		return nil, errors.New("okx ws_url empty")
	}
	if len(f.symbols) == 0 {
		return nil, errors.New("okx funding feed needs symbols")
	}
	out := make(chan []model.FundingRate, 16)
	go exchange.RunFundingStream(ctx, exchange.StreamConfig{
		Name:      f.Name(),
		URL:       f.wsURL,
		OnConnect: f.subscribe,
		Parse:     ParseFundingPush,
		Ping:      exchange.TextPing("ping"),
	}, out)
	return out, nil
}

func (f *FundingFeed) subscribe(conn *websocket.Conn) error {
	req := subReq{Op: "subscribe"}
	for _, s := range f.symbols {
		req.Args = append(req.Args, subArg{Channel: "funding-rate", InstID: dsvc.ToVenueSymbol(s, model.VenueOKX)})
	}
	return conn.WriteJSON(req)
}

// ParseFundingPush 解析 funding-rate 推送，订阅回执与 pong 返回空
func ParseFundingPush(b []byte) ([]model.FundingRate, error) {
	if string(b) == "pong" {
		return nil, nil
	}
	var msg pushMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		return nil, err
	}
	if msg.Event != "" || msg.Arg.Channel != "funding-rate" {
		return nil, nil
	}
	out := make([]model.FundingRate, 0, len(msg.Data))
	for _, d := range msg.Data {
		if d.FundingRate == "" {
			continue
		}
		out = append(out, toFundingRate(d))
	}
	return out, nil
}
