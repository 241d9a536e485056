package bitget

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fundarb/internal/infrastructure/exchange"
)

// envelope code "00000" 表示成功
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// decode 解析 envelope，data 写入 out；out 为 nil 时只校验 code
func decode(body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("parse bitget response: %w", err)
	}
	if env.Code != "00000" {
		return exchange.Rejected("bitget", env.Code, env.Msg)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse bitget data: %w", err)
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
	return c.do(ctx, req)
}

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

func (c *APIClient) signedJSONRequest(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return c.doSigned(ctx, req, path, string(body))
}

func (c *APIClient) doSigned(ctx context.Context, req *http.Request, requestPath, body string) ([]byte, error) {
	if !c.signed {
		return nil, fmt.Errorf("bitget %s: %w", requestPath, exchange.ErrMissingCredentials)
	}
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := c.credentials.Sign(timestamp + req.Method + requestPath + body)

	req.Header.Set("ACCESS-KEY", c.credentials.apiKey)
	req.Header.Set("ACCESS-SIGN", signature)
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("ACCESS-PASSPHRASE", c.credentials.passphrase)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")

	return c.do(ctx, req)
}

func (c *APIClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	body, err := exchange.Do(ctx, c.httpClient, c.limiter, "bitget", req)
	if err != nil {
		var httpErr *exchange.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status < 500 {
			var env envelope
			if json.Unmarshal([]byte(httpErr.Body), &env) == nil && env.Code != "" && env.Code != "00000" {
				return nil, exchange.Rejected("bitget", env.Code, env.Msg)
			}
		}
		return nil, err
	}
	return body, nil
}
