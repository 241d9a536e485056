package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// BillReporter 汇总各交易所资金费、手续费、已实现盈亏并推送
type BillReporter struct {
	gateways port.GatewayRegistry
	notifier port.Notifier
	interval time.Duration
	lookback time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewBillReporter 创建账单汇总
func NewBillReporter(gateways port.GatewayRegistry, notifier port.Notifier, interval, lookback time.Duration) *BillReporter {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &BillReporter{
		gateways: gateways,
		notifier: notifier,
		interval: interval,
		lookback: lookback,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
}

// Run 按周期推送，阻塞直到 ctx 取消
func (r *BillReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Report(ctx); err != nil {
				log.Warn().Err(err).Msg("bill report incomplete")
			}
		}
	}
}

// Summarize 拉取 lookback 时间窗内的流水并按交易所汇总
func (r *BillReporter) Summarize(ctx context.Context) ([]model.BillSummary, error) {
	since := r.now().Add(-r.lookback)
	var (
		g    errgroup.Group
		mu   sync.Mutex
		out  []model.BillSummary
		errs []string
	)
	for _, venue := range r.gateways.Venues() {
		venue := venue
		gw, ok := r.gateways.Get(venue)
		if !ok {
			continue
		}
		g.Go(func() error {
			bills, err := withTimeout(ctx, r.timeout, func(c context.Context) ([]model.Bill, error) {
				return gw.GetIncome(c, since)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", venue, err))
				return nil
			}
			out = append(out, Aggregate(venue, bills))
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	if len(errs) > 0 {
		sort.Strings(errs)
		return out, fmt.Errorf("income unavailable: %s", strings.Join(errs, "; "))
	}
	return out, nil
}

// Report 汇总并推送
func (r *BillReporter) Report(ctx context.Context) ([]model.BillSummary, error) {
	summaries, err := r.Summarize(ctx)
	if r.notifier != nil && len(summaries) > 0 {
		r.notifier.Notify(ctx, FormatBills(summaries, r.lookback))
	}
	return summaries, err
}

// Aggregate 按类型累加
func Aggregate(venue string, bills []model.Bill) model.BillSummary {
	s := model.BillSummary{Venue: venue}
	for _, b := range bills {
		switch b.Type {
		case model.IncomeFundingFee:
			s.FundingFee += b.Amount
		case model.IncomeCommission:
			s.TradeFee += b.Amount
		case model.IncomeRealizedPnl:
			s.RealizedPnl += b.Amount
		}
	}
	return s
}

// FormatBills 推送文本
func FormatBills(summaries []model.BillSummary, lookback time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 最近 %s 账单", lookback)
	var total float64
	for _, s := range summaries {
		fmt.Fprintf(&b, "\n%s 资金费 %.4f 手续费 %.4f 已实现 %.4f 净 %.4f",
			s.Venue, s.FundingFee, s.TradeFee, s.RealizedPnl, s.Net())
		total += s.Net()
	}
	fmt.Fprintf(&b, "\n合计 %.4f USDT", total)
	return b.String()
}
