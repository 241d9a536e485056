package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"fundarb/internal/infrastructure/exchange"
)

const (
	category   = "linear"
	recvWindow = "5000"
)

// Credentials Bybit API 凭证
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{apiKey: apiKey, apiSecret: apiSecret}
}

// Sign 生成 HMAC-SHA256 十六进制签名
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// APIClient 封装访问 Bybit V5 REST API 所需的共享依赖
type APIClient struct {
	credentials *Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	signed      bool
}

func newAPIClient(cfg exchange.Config) *APIClient {
	baseURL := strings.TrimRight(cfg.RestURL, "/")
	if baseURL == "" {
		baseURL = "https://api.bybit.com"
	}
	return &APIClient{
		credentials: NewCredentials(cfg.APIKey, cfg.APISecret),
		httpClient:  exchange.NewHTTPClient(cfg.Timeout),
		limiter:     exchange.NewLimiter(cfg.RateLimit, cfg.Burst),
		baseURL:     baseURL,
		signed:      cfg.HasCredentials(),
	}
}
