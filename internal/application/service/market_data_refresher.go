package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// MarketDataRefresher 按交易所定时刷新行情缓存
type MarketDataRefresher struct {
	cache     *MarketDataCache
	journal   port.Journal
	notifier  port.Notifier
	metrics   port.Metrics
	interval  time.Duration
	intervals map[string]time.Duration // 单交易所覆盖

	mu       sync.Mutex
	failures map[string]int
}

// NewMarketDataRefresher 创建行情刷新器
func NewMarketDataRefresher(
	cache *MarketDataCache,
	journal port.Journal,
	notifier port.Notifier,
	metrics port.Metrics,
	interval time.Duration,
	overrides map[string]time.Duration,
) *MarketDataRefresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &MarketDataRefresher{
		cache:     cache,
		journal:   journal,
		notifier:  notifier,
		metrics:   metrics,
		interval:  interval,
		intervals: overrides,
		failures:  make(map[string]int),
	}
}

// Run 每个交易所一个刷新循环，阻塞直到 ctx 取消
func (r *MarketDataRefresher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, venue := range r.cache.Venues() {
		venue := venue
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, venue)
		}()
	}
	wg.Wait()
	return nil
}

func (r *MarketDataRefresher) loop(ctx context.Context, venue string) {
	interval := r.interval
	if d, ok := r.intervals[venue]; ok && d > 0 {
		interval = d
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Str("venue", venue).Dur("interval", interval).Msg("market data refresher started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshOnce(ctx, venue)
		}
	}
}

// RefreshOnce 刷新一次并记录结果
func (r *MarketDataRefresher) RefreshOnce(ctx context.Context, venue string) error {
	err := r.cache.Refresh(ctx, venue)
	r.metrics.RefreshDone(venue, err)

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Str("venue", venue).Msg("market data refresh failed, keeping last snapshot")

		r.mu.Lock()
		r.failures[venue]++
		first := r.failures[venue] == 1
		r.mu.Unlock()
		if first && r.notifier != nil {
			r.notifier.Notify(ctx, fmt.Sprintf("⚠️ %s 行情刷新失败: %v", venue, err))
		}
		return err
	}

	r.mu.Lock()
	recovered := r.failures[venue] > 0
	r.failures[venue] = 0
	r.mu.Unlock()
	if recovered {
		log.Info().Str("venue", venue).Msg("market data refresh recovered")
	}

	if r.journal != nil {
		if snap := r.cache.Snapshot(venue); snap != nil {
			rates := snapshotRates(snap)
			if jerr := r.journal.RecordFundingSnapshot(ctx, venue, rates); jerr != nil {
				log.Debug().Err(jerr).Str("venue", venue).Msg("journal funding snapshot failed")
			}
		}
	}
	return nil
}

// ConsumeFeed 将流式推送合并进缓存，直到通道关闭
func (r *MarketDataRefresher) ConsumeFeed(ctx context.Context, venue string, ch <-chan []model.FundingRate) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			r.cache.ApplyFundingRates(venue, batch)
		}
	}
}

func snapshotRates(snap *Snapshot) []model.FundingRate {
	out := make([]model.FundingRate, 0, len(snap.Funding))
	for _, fr := range snap.Funding {
		out = append(out, fr)
	}
	return out
}
