// Package storage 观测记录的公共部分；具体实现见 sqlite、redis、postgres、composite
package storage

import (
	"context"
	"encoding/json"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// SignalReader 最近信号查询，供 HTTP 观测接口使用
type SignalReader interface {
	RecentSignals(ctx context.Context, limit int) ([]model.Signal, error)
}

// Noop 未启用任何存储时使用
type Noop struct{}

func (Noop) RecordFundingSnapshot(context.Context, string, []model.FundingRate) error { return nil }
func (Noop) RecordSignal(context.Context, model.Signal) error                         { return nil }
func (Noop) RecordAlert(context.Context, model.Alert) error                           { return nil }
func (Noop) Close() error                                                             { return nil }

var _ port.Journal = Noop{}

// Payload 序列化为 JSON 字符串，失败时返回空对象
func Payload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
