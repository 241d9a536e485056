package exchange

import (
	"sort"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
)

// Factory 由各交易所包在 init() 中注册
type Factory func(cfg Config) (port.ExchangeGateway, error)

var factories = make(map[string]Factory)

// Register 注册交易所网关工厂
func Register(venue string, factory Factory) {
	if factory == nil {
		log.Warn().Str("venue", venue).Msg("invalid gateway factory")
		return
	}
	if _, exists := factories[venue]; exists {
		log.Warn().Str("venue", venue).Msg("gateway factory already registered, overwriting")
	}
	factories[venue] = factory
}

// Lookup 获取已注册的工厂
func Lookup(venue string) (Factory, bool) {
	f, ok := factories[venue]
	return f, ok
}

// Registered 已注册的交易所名
func Registered() []string {
	out := make([]string, 0, len(factories))
	for v := range factories {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Registry 已构造的网关集合，构造后只读
type Registry struct {
	gateways map[string]port.ExchangeGateway
}

func NewRegistry(gateways ...port.ExchangeGateway) *Registry {
	r := &Registry{gateways: make(map[string]port.ExchangeGateway, len(gateways))}
	for _, gw := range gateways {
		r.gateways[gw.Name()] = gw
	}
	return r
}

func (r *Registry) Get(venue string) (port.ExchangeGateway, bool) {
	gw, ok := r.gateways[venue]
	return gw, ok
}

func (r *Registry) Venues() []string {
	out := make([]string, 0, len(r.gateways))
	for v := range r.gateways {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
