package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"fundarb/internal/infrastructure/exchange"
)

// ===== Credentials 凭证 =====

// Credentials 包含 OKX API 凭证和签名方法
type Credentials struct {
	apiKey     string
	apiSecret  string
	passphrase string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret, passphrase string) *Credentials {
	return &Credentials{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		passphrase: passphrase,
	}
}

// Sign 生成 OKX HMAC-SHA256 签名
// OKX 签名: BASE64(HMAC-SHA256(timestamp + method + requestPath + body, secretKey))
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// APIKey 返回 API Key
func (c *Credentials) APIKey() string {
	return c.apiKey
}

// Passphrase 返回 Passphrase
func (c *Credentials) Passphrase() string {
	return c.passphrase
}

// APIClient 封装访问 OKX v5 REST API 所需的共享依赖
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
		baseURL = "https://www.okx.com"
	}
	return &APIClient{
		credentials: NewCredentials(cfg.APIKey, cfg.APISecret, cfg.Passphrase),
		httpClient:  exchange.NewHTTPClient(cfg.Timeout),
		limiter:     exchange.NewLimiter(cfg.RateLimit, cfg.Burst),
		baseURL:     baseURL,
		signed:      cfg.HasCredentials() && cfg.Passphrase != "",
	}
}
