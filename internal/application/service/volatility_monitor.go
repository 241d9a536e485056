package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// VolatilityConfig 行情波动监控参数
type VolatilityConfig struct {
	Venue       string
	Interval    time.Duration
	Thresholds  map[string]float64 // K 线周期 -> 涨跌幅阈值，0.1 = 10%
	Symbols     []string           // 为空时监控缓存中该交易所的全部合约
	Concurrency int
}

// VolatilityMonitor 周期性拉取 K 线，单根周期内涨跌幅过大时告警
type VolatilityMonitor struct {
	source  port.KlineSource
	cache   *MarketDataCache
	alerts  *AlertDispatcher
	cfg     VolatilityConfig
	windows []string
	now     func() time.Time
}

// NewVolatilityMonitor 网关需实现 port.KlineSource
func NewVolatilityMonitor(gateways port.GatewayRegistry, cache *MarketDataCache, alerts *AlertDispatcher, cfg VolatilityConfig) (*VolatilityMonitor, error) {
	gw, ok := gateways.Get(cfg.Venue)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, cfg.Venue)
	}
	source, ok := gw.(port.KlineSource)
	if !ok {
		return nil, fmt.Errorf("%s does not provide klines", cfg.Venue)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	windows := make([]string, 0, len(cfg.Thresholds))
	for w := range cfg.Thresholds {
		windows = append(windows, w)
	}
	sort.Strings(windows)

	return &VolatilityMonitor{
		source:  source,
		cache:   cache,
		alerts:  alerts,
		cfg:     cfg,
		windows: windows,
		now:     time.Now,
	}, nil
}

func (m *VolatilityMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	log.Info().Str("venue", m.cfg.Venue).Strs("windows", m.windows).Dur("interval", m.cfg.Interval).Msg("volatility monitor started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check 执行一轮检查，返回本轮实际发出的告警
// 单个 symbol 拉取失败只记日志，冷却期内的 (symbol, 周期) 不再请求 K 线。
func (m *VolatilityMonitor) Check(ctx context.Context) []model.Alert {
	symbols := m.symbols()
	if len(symbols) == 0 {
		log.Debug().Str("venue", m.cfg.Venue).Msg("volatility monitor: no symbols, skip")
		return nil
	}
	now := m.now()

	found := make([][]model.Alert, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			found[i] = m.checkSymbol(gctx, symbol, now)
			return nil
		})
	}
	_ = g.Wait()

	var alerts []model.Alert
	for _, a := range found {
		alerts = append(alerts, a...)
	}
	return m.alerts.Dispatch(ctx, alerts, now)
}

func (m *VolatilityMonitor) checkSymbol(ctx context.Context, symbol string, now time.Time) []model.Alert {
	var out []model.Alert
	for _, window := range m.windows {
		if m.alerts.Cooling(domainservice.VolatilityAlertKey(m.cfg.Venue, symbol, window), now) {
			continue
		}
		klines, err := m.source.GetKlines(ctx, symbol, window, 2)
		if err != nil {
			log.Warn().Err(err).Str("venue", m.cfg.Venue).Str("symbol", symbol).Str("window", window).Msg("get klines failed")
			continue
		}
		if a, ok := domainservice.EvaluateVolatility(m.cfg.Venue, symbol, window, klines, m.cfg.Thresholds[window], now); ok {
			out = append(out, a)
		}
	}
	return out
}

func (m *VolatilityMonitor) symbols() []string {
	if len(m.cfg.Symbols) > 0 {
		return m.cfg.Symbols
	}
	snap := m.cache.Snapshot(m.cfg.Venue)
	if snap == nil {
		return nil
	}
	out := make([]string, 0, len(snap.Limits))
	for symbol := range snap.Limits {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}
