package service

import (
	"errors"

	"fundarb/internal/application/port"
	domainservice "fundarb/internal/domain/service"
)

var (
	// ErrSignalUnavailable 任一交易所缺少资金费率
	ErrSignalUnavailable = domainservice.ErrSignalUnavailable
	// ErrQuantityInvalid 下单数量取整后为 0 或超出限制
	ErrQuantityInvalid = domainservice.ErrQuantityInvalid
	// ErrGatewayRejected 交易所返回非成功状态
	ErrGatewayRejected = port.ErrGatewayRejected

	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrOperationInFlight = errors.New("operation already in flight for symbol")
	ErrUnknownVenue      = errors.New("unknown venue")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrPartialExecution  = errors.New("partial execution")
	ErrEmptySnapshot     = errors.New("venue returned no funding rates")
)
