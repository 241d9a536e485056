package bitget

import (
	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

// Gateway Bitget USDT-FUTURES，账户需为双向持仓模式
type Gateway struct {
	*APIClient
}

// New 创建网关，无凭证时只能调用行情接口
func New(cfg exchange.Config) (port.ExchangeGateway, error) {
	return &Gateway{APIClient: newAPIClient(cfg)}, nil
}

func (c *Gateway) Name() string { return model.VenueBitget }
