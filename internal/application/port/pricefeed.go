package port

import (
	"context"

	"fundarb/internal/domain/model"
)

// FundingFeed 流式资金费率推送（websocket），每条消息为该交易所的一批费率
type FundingFeed interface {
	Name() string
	Subscribe(ctx context.Context) (<-chan []model.FundingRate, error)
}
