package binance

import (
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// Gateway Binance USDⓈ-M 永续合约
type Gateway struct {
	*APIClient

	modeMu    sync.Mutex
	modeKnown bool
	dualSide  bool
}

// New 创建网关，无凭证时只能调用行情接口
func New(cfg exchange.Config) (port.ExchangeGateway, error) {
	return &Gateway{APIClient: newAPIClient(cfg)}, nil
}

func (c *Gateway) Name() string { return model.VenueBinance }
