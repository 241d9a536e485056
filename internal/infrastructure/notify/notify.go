// Package notify 告警通道：日志、Telegram、Kafka 以及扇出组合
package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
)

// LogNotifier 只写日志，未配置任何通道时使用
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, message string) {
	log.Info().Str("channel", "log").Msg(message)
}

// Multi 依次投递到每个通道，单个通道失败由其自身记录
type Multi []port.Notifier

func (m Multi) Notify(ctx context.Context, message string) {
	for _, n := range m {
		n.Notify(ctx, message)
	}
}

// Combine 过滤空通道；一个都没有时退化为 LogNotifier
func Combine(notifiers ...port.Notifier) port.Notifier {
	out := make(Multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	switch len(out) {
	case 0:
		return LogNotifier{}
	case 1:
		return out[0]
	}
	return out
}
