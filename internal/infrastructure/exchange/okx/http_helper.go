package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"fundarb/internal/infrastructure/exchange"
)

// envelope OKX v5 统一响应结构，code "0" 表示成功
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// decodeData 解析 envelope 并取出 data 数组
func decodeData[T any](body []byte) ([]T, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse okx response: %w", err)
	}
	if env.Code != "0" {
		return nil, exchange.Rejected("okx", env.Code, env.Msg)
	}
	var out []T
	if len(env.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("parse okx data: %w", err)
	}
	return out, nil
}

// publicRequest 无需签名的行情接口
func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// signedJSONRequest 发送带 JSON payload 的签名请求
func (c *APIClient) signedJSONRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doSigned(ctx, req, path, string(body))
}

// signedQueryRequest 发送带 query 的签名请求
// GET 请求的 requestPath 包含 ?query 部分。
func (c *APIClient) signedQueryRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
	requestPath := path
	if len(params) > 0 {
		requestPath += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+requestPath, nil)
	if err != nil {
		return nil, err
	}
	return c.doSigned(ctx, req, requestPath, "")
}

func (c *APIClient) doSigned(ctx context.Context, req *http.Request, requestPath, body string) ([]byte, error) {
	if !c.signed {
		return nil, fmt.Errorf("okx %s: %w", requestPath, exchange.ErrMissingCredentials)
	}
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	signature := c.credentials.Sign(timestamp + req.Method + requestPath + body)

	req.Header.Set("OK-ACCESS-KEY", c.credentials.APIKey())
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.credentials.Passphrase())

	return c.do(ctx, req)
}

// do 4xx 响应中的业务错误码转换为 ErrGatewayRejected
func (c *APIClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	body, err := exchange.Do(ctx, c.httpClient, c.limiter, "okx", req)
	if err != nil {
		var httpErr *exchange.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status < 500 {
			var env envelope
			if json.Unmarshal([]byte(httpErr.Body), &env) == nil && env.Code != "" && env.Code != "0" {
				return nil, exchange.Rejected("okx", env.Code, env.Msg)
			}
		}
		return nil, err
	}
	return body, nil
}
