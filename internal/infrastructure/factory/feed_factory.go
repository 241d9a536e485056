package factory

import (
	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/pricefeed"
)

// NewFundingFeeds 为配置了 ws_url 的已启用交易所创建资金费率推送
// 各交易所的推送工厂在其 register.go 中注册，这里不做硬编码。
func NewFundingFeeds(cfg *config.Config) []port.FundingFeed {
	var feeds []port.FundingFeed
	for _, venue := range cfg.EnabledExchanges() {
		ex := cfg.Exchanges[venue]
		if ex.WsURL == "" {
			continue
		}
		factory, ok := pricefeed.Get(venue)
		if !ok {
			log.Warn().Msgf("⚠️ funding feed not registered: %s", venue)
			continue
		}
		feeds = append(feeds, factory(ex.WsURL, cfg.Symbols.List))
		log.Info().Msgf("✓ %s funding feed initialized", venue)
	}
	return feeds
}
