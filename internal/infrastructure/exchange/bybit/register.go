package bybit

import (
	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/pricefeed"
)

// init() 注册网关工厂与资金费率推送
func init() {
	exchange.Register(model.VenueBybit, New)
	pricefeed.Register(model.VenueBybit, func(wsURL string, symbols []string) port.FundingFeed {
		return NewFundingFeed(wsURL, symbols)
	})
}
