package okx

import (
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// Gateway OKX USDT 本位永续合约
type Gateway struct {
	*APIClient

	modeMu    sync.Mutex
	modeKnown bool
	longShort bool
}

// New 创建网关，无凭证时只能调用行情接口
func New(cfg exchange.Config) (port.ExchangeGateway, error) {
	return &Gateway{APIClient: newAPIClient(cfg)}, nil
}

func (c *Gateway) Name() string { return model.VenueOKX }
