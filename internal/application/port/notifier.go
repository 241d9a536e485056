package port

import "context"

// Notifier 告警通道，尽力投递，失败由实现自行记录，不向调用方返回
type Notifier interface {
	Notify(ctx context.Context, message string)
}
