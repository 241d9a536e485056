package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundarb/internal/infrastructure/exchange"
)

// envelope retCode 0 表示成功
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// listResult 分页列表
type listResult[T any] struct {
	List           []T    `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

// decode 解析 envelope，result 写入 out；ignore 中的错误码视为成功
func decode(body []byte, out any, ignore ...int) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parse bybit response: %w", err)
	}
	if env.RetCode != 0 {
		for _, code := range ignore {
			if env.RetCode == code {
				return nil
			}
		}
		return exchange.Rejected("bybit", strconv.Itoa(env.RetCode), env.RetMsg)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("parse bybit result: %w", err)
	}
	return nil
}

func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return exchange.Do(ctx, c.httpClient, c.limiter, "bybit", req)
}

// signedJSONRequest 发送带 JSON payload 的签名请求
func (c *APIClient) signedJSONRequest(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doSigned(ctx, req, string(body))
}

// signedQueryRequest 发送带 query 的签名请求
func (c *APIClient) signedQueryRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := ""
	endpoint := c.baseURL + path
	if len(params) > 0 {
		query = params.Encode()
		endpoint += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.doSigned(ctx, req, query)
}

func (c *APIClient) doSigned(ctx context.Context, req *http.Request, payload string) ([]byte, error) {
	if !c.signed {
		return nil, fmt.Errorf("bybit %s: %w", req.URL.Path, exchange.ErrMissingCredentials)
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	// Bybit V5 signature: timestamp + apiKey + recvWindow + payload
	signature := c.credentials.Sign(timestamp + c.credentials.APIKey() + recvWindow + payload)

	req.Header.Set("X-BAPI-API-KEY", c.credentials.APIKey())
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", signature)

	return exchange.Do(ctx, c.httpClient, c.limiter, "bybit", req)
}
