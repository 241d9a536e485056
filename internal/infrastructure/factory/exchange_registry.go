package factory

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/exchange"

	// 各交易所包在 init() 中注册网关与推送工厂
	_ "fundarb/internal/infrastructure/exchange/binance"
	_ "fundarb/internal/infrastructure/exchange/bitget"
	_ "fundarb/internal/infrastructure/exchange/bybit"
	_ "fundarb/internal/infrastructure/exchange/okx"
)

// GatewayConfig 配置转换为网关参数
func GatewayConfig(cfg *config.Config, venue string) exchange.Config {
	ex := cfg.Exchanges[venue]
	return exchange.Config{
		Venue:      venue,
		APIKey:     ex.APIKey,
		APISecret:  ex.APISecret,
		Passphrase: ex.Passphrase,
		RestURL:    ex.RestURL,
		WsURL:      ex.WsURL,
		RateLimit:  ex.RateLimit,
		Burst:      ex.Burst,
		Timeout:    cfg.Market.RefreshTimeout.Duration,
	}
}

// BuildGateways 为所有已启用的交易所创建网关
// 未注册的交易所名视为配置错误。
func BuildGateways(cfg *config.Config) (*exchange.Registry, error) {
	enabled := cfg.EnabledExchanges()
	gateways := make([]port.ExchangeGateway, 0, len(enabled))
	for _, venue := range enabled {
		build, ok := exchange.Lookup(venue)
		if !ok {
			return nil, fmt.Errorf("exchange %q not supported, registered: %v", venue, exchange.Registered())
		}
		gwCfg := GatewayConfig(cfg, venue)
		gw, err := build(gwCfg)
		if err != nil {
			return nil, fmt.Errorf("create %s gateway: %w", venue, err)
		}
		if !gwCfg.HasCredentials() {
			log.Warn().Str("exchange", venue).Msg("no api credentials, account operations disabled")
		}
		gateways = append(gateways, gw)
		log.Info().Str("exchange", venue).Str("rest", gwCfg.RestURL).Msg("✓ gateway initialized")
	}
	return exchange.NewRegistry(gateways...), nil
}
