package port

import (
	"context"
	"errors"
	"time"

	"fundarb/internal/domain/model"
)

// ExchangeGateway 单个交易所的能力集合
// 所有返回值中的 symbol 都已归一化；入参 symbol 也使用归一化格式，由网关转换为交易所格式。
type ExchangeGateway interface {
	Name() string

	// 行情（只读）
	GetFundingRates(ctx context.Context) ([]model.FundingRate, error)
	// symbol 为空时返回全部合约
	GetPrices(ctx context.Context, symbol string) ([]model.Price, error)
	GetInstrumentLimits(ctx context.Context) ([]model.InstrumentLimit, error)

	// 账户
	GetPositions(ctx context.Context) ([]model.Position, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	PlaceOrder(ctx context.Context, req model.OrderRequest) (string, error)
	GetIncome(ctx context.Context, since time.Time) ([]model.Bill, error)
}

// KlineSource 可选能力，提供 K 线的网关实现它
// 返回按开盘时间升序排列。
type KlineSource interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error)
}

// GatewayRegistry 按交易所名查找网关
type GatewayRegistry interface {
	Get(venue string) (ExchangeGateway, bool)
	Venues() []string
}

// ErrGatewayRejected 交易所返回非成功状态（业务错误码、鉴权失败等）
var ErrGatewayRejected = errors.New("gateway rejected")
