package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// RetryConfig 订阅重试配置
type RetryConfig struct {
	MaxRetries int           // 最大重试次数
	InitialDel time.Duration // 初始延迟
	MaxDelay   time.Duration // 最大延迟
}

// DefaultRetryConfig 默认重试配置
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	InitialDel: 1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Consumer 推送消费者，由行情刷新器实现
type Consumer interface {
	ConsumeFeed(ctx context.Context, venue string, ch <-chan []model.FundingRate)
}

// FeedManager 统一管理各交易所的资金费率推送
// 单个交易所订阅失败不影响其他交易所，REST 轮询仍然兜底。
type FeedManager struct {
	feeds       []port.FundingFeed
	consumer    Consumer
	retryConfig RetryConfig
}

// NewFeedManager 创建推送管理器
func NewFeedManager(feeds []port.FundingFeed, consumer Consumer) *FeedManager {
	return &FeedManager{
		feeds:       feeds,
		consumer:    consumer,
		retryConfig: DefaultRetryConfig,
	}
}

// SetRetryConfig 设置重试配置
func (m *FeedManager) SetRetryConfig(cfg RetryConfig) {
	m.retryConfig = cfg
}

// Run 订阅所有推送并阻塞到 ctx 结束
func (m *FeedManager) Run(ctx context.Context) error {
	if len(m.feeds) == 0 {
		<-ctx.Done()
		return nil
	}

	var wg sync.WaitGroup
	var failed []string
	for _, feed := range m.feeds {
		ch, err := m.subscribeWithRetry(ctx, feed)
		if err != nil {
			log.Error().Err(err).Str("exchange", feed.Name()).Msg("funding feed unavailable, falling back to polling")
			failed = append(failed, feed.Name())
			continue
		}
		wg.Add(1)
		go func(venue string, ch <-chan []model.FundingRate) {
			defer wg.Done()
			m.consumer.ConsumeFeed(ctx, venue, ch)
		}(feed.Name(), ch)
		log.Info().Str("exchange", feed.Name()).Msg("✓ funding feed subscribed")
	}

	if len(failed) > 0 {
		log.Warn().Strs("failed_exchanges", failed).Msg("some funding feeds failed to subscribe")
	}
	wg.Wait()
	return nil
}

// subscribeWithRetry 指数退避重试订阅
func (m *FeedManager) subscribeWithRetry(ctx context.Context, feed port.FundingFeed) (<-chan []model.FundingRate, error) {
	var lastErr error
	delay := m.retryConfig.InitialDel

	for attempt := 0; attempt <= m.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Info().
				Str("exchange", feed.Name()).
				Int("attempt", attempt).
				Int64("delay_ms", delay.Milliseconds()).
				Msg("retrying funding feed subscribe")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > m.retryConfig.MaxDelay {
				delay = m.retryConfig.MaxDelay
			}
		}

		ch, err := feed.Subscribe(ctx)
		if err == nil {
			return ch, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("subscribe %s after %d retries: %w", feed.Name(), m.retryConfig.MaxRetries, lastErr)
}
