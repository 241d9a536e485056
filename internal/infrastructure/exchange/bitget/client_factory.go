package bitget

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"fundarb/internal/infrastructure/exchange"
)

const (
	productType = "USDT-FUTURES"
	marginCoin  = "USDT"
)

// Credentials Bitget API 凭证
type Credentials struct {
	apiKey     string
	apiSecret  string
	passphrase string
}

// NewCredentials 创建凭证对象
func NewCredentials(apiKey, apiSecret, passphrase string) *Credentials {
	return &Credentials{apiKey: apiKey, apiSecret: apiSecret, passphrase: passphrase}
}

// Sign BASE64(HMAC-SHA256(timestamp + METHOD + requestPath + body))
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// APIClient 封装访问 Bitget v2 mix REST API 所需的共享依赖
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
		baseURL = "https://api.bitget.com"
	}
	return &APIClient{
		credentials: NewCredentials(cfg.APIKey, cfg.APISecret, cfg.Passphrase),
		httpClient:  exchange.NewHTTPClient(cfg.Timeout),
		limiter:     exchange.NewLimiter(cfg.RateLimit, cfg.Burst),
		baseURL:     baseURL,
		signed:      cfg.HasCredentials() && cfg.Passphrase != "",
	}
}
