package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// RiskMonitor 周期性检查持仓，只告警，从不自动平仓
type RiskMonitor struct {
	positions  *PositionService
	cache      *MarketDataCache
	alerts     *AlertDispatcher
	thresholds domainservice.RiskThresholds
	interval   time.Duration
	now        func() time.Time
}

// NewRiskMonitor 创建风控监控
func NewRiskMonitor(
	positions *PositionService,
	cache *MarketDataCache,
	notifier port.Notifier,
	journal port.Journal,
	metrics port.Metrics,
	thresholds domainservice.RiskThresholds,
	interval, cooldown time.Duration,
) *RiskMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &RiskMonitor{
		positions:  positions,
		cache:      cache,
		alerts:     NewAlertDispatcher(notifier, journal, metrics, cooldown),
		thresholds: thresholds,
		interval:   interval,
		now:        time.Now,
	}
}

// Run 按周期检查，阻塞直到 ctx 取消
func (m *RiskMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("risk monitor started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check 执行一次检查，返回本次实际发出的告警
func (m *RiskMonitor) Check(ctx context.Context) []model.Alert {
	now := m.now()
	positions, err := m.positions.FetchAll(ctx)

	var alerts []model.Alert
	if err != nil {
		log.Warn().Err(err).Msg("risk monitor: position fetch incomplete")
		alerts = append(alerts, venueAlerts(err, now)...)
	}

	lookup := domainservice.RateLookup(m.cache.Funding)
	for symbol, legs := range domainservice.GroupBySymbol(positions) {
		alerts = append(alerts, domainservice.EvaluateSymbol(symbol, legs, lookup, m.thresholds, now)...)
	}

	return m.alerts.Dispatch(ctx, alerts, now)
}

func venueAlerts(err error, now time.Time) []model.Alert {
	var out []model.Alert
	for _, e := range flattenErrors(err) {
		var ve *VenueError
		if !errors.As(e, &ve) {
			continue
		}
		out = append(out, model.Alert{
			Kind:      model.AlertVenueUnavailable,
			Venues:    []string{ve.Venue},
			Message:   fmt.Sprintf("⚠️ %s 持仓查询失败: %v", ve.Venue, ve.Err),
			Timestamp: now,
		})
	}
	return out
}

func flattenErrors(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
