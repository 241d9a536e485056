package exchange

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"fundarb/internal/domain/model"
)

// StreamConfig 资金费率推送连接参数
type StreamConfig struct {
	Name string
	URL  string
	// OnConnect 连接建立后发送订阅，可为空
	OnConnect func(conn *websocket.Conn) error
	// Parse 解析一条消息，非数据消息返回空
	Parse func(b []byte) ([]model.FundingRate, error)
	Ping  func(conn *websocket.Conn) error
}

// TextPing 发送文本心跳
func TextPing(payload string) func(conn *websocket.Conn) error {
	return func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.TextMessage, []byte(payload))
	}
}

// RunFundingStream 断线指数退避重连，直到 ctx 结束后关闭 out
func RunFundingStream(ctx context.Context, cfg StreamConfig, out chan<- []model.FundingRate) {
	defer close(out)

	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	helper := &WSHelper{URL: cfg.URL, Ping: cfg.Ping}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Info().Str("feed", cfg.Name).Str("url", cfg.URL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, err := helper.DialWS(cctx)
		cancel()
		if err != nil {
			log.Error().Str("feed", cfg.Name).Err(err).Msg("ws dial failed")
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = MinDuration(backoff*2, maxBackoff)
			continue
		}

		if cfg.OnConnect != nil {
			if err := cfg.OnConnect(conn); err != nil {
				log.Error().Str("feed", cfg.Name).Err(err).Msg("ws subscribe failed")
				_ = conn.Close()
				if !sleepCtx(ctx, backoff) {
					return
				}
				backoff = MinDuration(backoff*2, maxBackoff)
				continue
			}
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", cfg.Name).Msg("ws connected")

		err = helper.ReadWithPing(ctx, conn, func(b []byte) {
			rates, e := cfg.Parse(b)
			if e != nil {
				log.Debug().Str("feed", cfg.Name).Err(e).Msg("ws message skipped")
				return
			}
			if len(rates) == 0 {
				return
			}
			select {
			case out <- rates:
			default:
				// 消费方跟不上时丢弃
			}
		})
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("feed", cfg.Name).Err(err).Msg("ws disconnected, reconnecting")
		if !sleepCtx(ctx, backoff) {
			return
		}
		backoff = MinDuration(backoff*2, maxBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
