package bybit

import (
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// Gateway Bybit V5 linear 永续（统一账户）
type Gateway struct {
	*APIClient

	modeMu sync.Mutex
	modes  map[string]bool
}

// New 创建网关，无凭证时只能调用行情接口
func New(cfg exchange.Config) (port.ExchangeGateway, error) {
	return &Gateway{APIClient: newAPIClient(cfg), modes: make(map[string]bool)}, nil
}

func (c *Gateway) Name() string { return model.VenueBybit }
