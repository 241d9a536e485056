package pricefeed

import (
	"fundarb/internal/application/port"

	"github.com/rs/zerolog/log"
)

// factory函数类型
// wsURL: WebSocket连接URL, symbols: 需要逐个订阅的交易所使用
type Factory func(wsURL string, symbols []string) port.FundingFeed

// registry maps exchange names to their funding feed factories
var registry = make(map[string]Factory)

// Register 注册资金费率推送工厂
// 由各个交易所包的init()函数调用来自注册
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid funding feed factory")
		return
	}
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("funding feed factory already registered, overwriting")
	}
	registry[exchangeName] = factory
	log.Debug().Str("exchange", exchangeName).Msg("funding feed factory registered")
}

// Get 获取已注册的funding feed factory
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[exchangeName]
	return factory, ok
}
