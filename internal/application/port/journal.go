package port

import (
	"context"

	"fundarb/internal/domain/model"
)

// Journal 观测记录：行情快照、信号、告警
// 不记录订单与资金，任何交易决策都不读取它。
type Journal interface {
	RecordFundingSnapshot(ctx context.Context, venue string, rates []model.FundingRate) error
	RecordSignal(ctx context.Context, sig model.Signal) error
	RecordAlert(ctx context.Context, alert model.Alert) error
	Close() error
}
