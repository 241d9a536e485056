package binance

import (
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

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
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

// signedRequest is shared helper for signed REST calls.
func (c *APIClient) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if !c.signed {
		return nil, fmt.Errorf("binance %s: %w", path, exchange.ErrMissingCredentials)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if params.Get("recvWindow") == "" {
		params.Set("recvWindow", "5000")
	}

	query := params.Encode()
	signature := c.credentials.Sign(query)
	endpoint := fmt.Sprintf("%s%s?%s&signature=%s", c.baseURL, path, query, signature)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.credentials.APIKey())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(ctx, req)
}

// do 4xx 响应体中的业务错误码转换为 ErrGatewayRejected
func (c *APIClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	body, err := exchange.Do(ctx, c.httpClient, c.limiter, "binance", req)
	if err != nil {
		var httpErr *exchange.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status < 500 {
			var ae apiError
			if json.Unmarshal([]byte(httpErr.Body), &ae) == nil && ae.Code != 0 {
				return nil, exchange.Rejected("binance", strconv.Itoa(ae.Code), ae.Msg)
			}
		}
		return nil, err
	}
	return body, nil
}
