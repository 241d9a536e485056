// Package metrics Prometheus 业务指标：行情刷新、告警、下单腿
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fundarb"

// Metrics 实现 port.Metrics，使用独立 registry
type Metrics struct {
	registry *prometheus.Registry

	refreshTotal  *prometheus.CounterVec
	refreshErrors *prometheus.CounterVec
	lastRefresh   *prometheus.GaugeVec
	alertsTotal   *prometheus.CounterVec
	legsTotal     *prometheus.CounterVec

	now func() time.Time
}

// New 创建指标集合并注册 go/process 采集器
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_refresh_total",
			Help:      "Market data refresh attempts per venue",
		}, []string{"venue"}),
		refreshErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "market_refresh_errors_total",
			Help:      "Failed market data refreshes per venue",
		}, []string{"venue"}),
		lastRefresh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh per venue",
		}, []string{"venue"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_alerts_total",
			Help:      "Risk alerts raised by kind",
		}, []string{"kind"}),
		legsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_legs_total",
			Help:      "Execution legs finished by venue, action and state",
		}, []string{"venue", "action", "state"}),
		now: time.Now,
	}
	m.registry.MustRegister(
		m.refreshTotal, m.refreshErrors, m.lastRefresh, m.alertsTotal, m.legsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) RefreshDone(venue string, err error) {
	m.refreshTotal.WithLabelValues(venue).Inc()
	if err != nil {
		m.refreshErrors.WithLabelValues(venue).Inc()
		return
	}
	m.lastRefresh.WithLabelValues(venue).Set(float64(m.now().Unix()))
}

func (m *Metrics) AlertRaised(kind string) {
	m.alertsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) LegFinished(venue, action, state string) {
	m.legsTotal.WithLabelValues(venue, action, state).Inc()
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
