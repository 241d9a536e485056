package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"fundarb/internal/application/port"
)

// ErrMissingCredentials 未配置凭证时账户类接口返回
var ErrMissingCredentials = errors.New("api credentials missing")

// Config 单个交易所网关的连接参数
type Config struct {
	Venue      string
	APIKey     string
	APISecret  string
	Passphrase string
	RestURL    string
	WsURL      string
	RateLimit  float64 // 每秒请求数，<=0 不限速
	Burst      int
	Timeout    time.Duration
}

// HasCredentials 账户类接口需要凭证
func (c Config) HasCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// HTTPError 非 200 响应
// 4xx 视为交易所拒绝（鉴权、参数、余额），5xx 视为暂时不可用。
type HTTPError struct {
	Venue  string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Venue, e.Status, e.Body)
}

func (e *HTTPError) Unwrap() error {
	if e.Status >= 400 && e.Status < 500 {
		return port.ErrGatewayRejected
	}
	return nil
}

// Rejected 业务错误码，统一包装为 ErrGatewayRejected
func Rejected(venue, code, msg string) error {
	return fmt.Errorf("%w: %s code=%s msg=%s", port.ErrGatewayRejected, venue, code, msg)
}

// NewHTTPClient 统一的 HTTP 客户端
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// NewLimiter 每个交易所一个请求限速器
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Do 限速后发送请求并读取响应体
func Do(ctx context.Context, client *http.Client, limiter *rate.Limiter, venue string, req *http.Request) ([]byte, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limit wait: %w", venue, err)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Venue: venue, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ParseFloat 空串或非法值返回 0
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseInt 空串或非法值返回 0
func ParseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// MillisToTime 毫秒时间戳，0 返回零值
func MillisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// WSHelper provides common WebSocket functionality
type WSHelper struct {
	URL string
	// Ping 应用层心跳，为空时发送 websocket ping 帧
	Ping func(conn *websocket.Conn) error
}

// DialWS creates a WebSocket connection with timeout
func (w *WSHelper) DialWS(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, w.URL, nil)
	return conn, err
}

// ReadWithPing reads WebSocket messages with periodic pings
func (w *WSHelper) ReadWithPing(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			onMessage(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			if w.Ping != nil {
				_ = w.Ping(conn)
				continue
			}
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

// MinDuration returns the minimum of two durations
func MinDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
