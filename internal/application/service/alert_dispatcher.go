package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// AlertDispatcher 告警去重后发往通知、流水和指标
// 同一 key 在冷却期内只发送一次，cooldown <= 0 表示不去重。
type AlertDispatcher struct {
	notifier port.Notifier
	journal  port.Journal
	metrics  port.Metrics
	cooldown time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // alert key -> 上次发送时间
}

func NewAlertDispatcher(notifier port.Notifier, journal port.Journal, metrics port.Metrics, cooldown time.Duration) *AlertDispatcher {
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &AlertDispatcher{
		notifier: notifier,
		journal:  journal,
		metrics:  metrics,
		cooldown: cooldown,
		lastSent: make(map[string]time.Time),
	}
}

// Dispatch 返回实际发出的告警
func (d *AlertDispatcher) Dispatch(ctx context.Context, alerts []model.Alert, now time.Time) []model.Alert {
	var sent []model.Alert
	for _, a := range alerts {
		if !d.admit(a.Key(), now) {
			continue
		}
		sent = append(sent, a)
		d.metrics.AlertRaised(string(a.Kind))
		log.Warn().
			Str("kind", string(a.Kind)).
			Str("symbol", a.Symbol).
			Strs("venues", a.Venues).
			Str("window", a.Window).
			Float64("value", a.Value).
			Float64("threshold", a.Threshold).
			Msg("risk alert")
		if d.notifier != nil {
			d.notifier.Notify(ctx, a.Message)
		}
		if d.journal != nil {
			if err := d.journal.RecordAlert(ctx, a); err != nil {
				log.Debug().Err(err).Msg("journal alert failed")
			}
		}
	}
	return sent
}

// Cooling 该 key 是否仍在冷却期内，不占用发送名额
func (d *AlertDispatcher) Cooling(key string, now time.Time) bool {
	if d.cooldown <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastSent[key]
	return ok && now.Sub(last) < d.cooldown
}

func (d *AlertDispatcher) admit(key string, now time.Time) bool {
	if d.cooldown <= 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.lastSent[key] = now
	return true
}
