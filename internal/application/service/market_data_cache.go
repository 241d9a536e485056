package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// Snapshot 单个交易所的一份不可变行情快照
// 发布后不再修改，读方可以直接持有 map。
type Snapshot struct {
	Venue     string
	Funding   map[string]model.FundingRate
	Prices    map[string]model.Price
	Limits    map[string]model.InstrumentLimit
	UpdatedAt time.Time
}

// MarketDataCache 各交易所的资金费率、价格、下单限制
// 读操作无锁，写操作整体替换快照。
type MarketDataCache struct {
	gateways port.GatewayRegistry
	timeout  time.Duration

	snapshots map[string]*atomic.Pointer[Snapshot] // 构造后只读
	writeMu   map[string]*sync.Mutex
}

// NewMarketDataCache 创建缓存，timeout 为单次刷新的超时
func NewMarketDataCache(gateways port.GatewayRegistry, timeout time.Duration) *MarketDataCache {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &MarketDataCache{
		gateways:  gateways,
		timeout:   timeout,
		snapshots: make(map[string]*atomic.Pointer[Snapshot]),
		writeMu:   make(map[string]*sync.Mutex),
	}
	for _, venue := range gateways.Venues() {
		c.snapshots[venue] = new(atomic.Pointer[Snapshot])
		c.writeMu[venue] = new(sync.Mutex)
	}
	return c
}

// Venues 已注册的交易所，按名称排序
func (c *MarketDataCache) Venues() []string {
	out := make([]string, 0, len(c.snapshots))
	for v := range c.snapshots {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Refresh 拉取一个交易所的全部行情并原子替换
// 失败时保留上一份快照并返回错误。
func (c *MarketDataCache) Refresh(ctx context.Context, venue string) error {
	gw, ok := c.gateways.Get(venue)
	if !ok || c.snapshots[venue] == nil {
		return fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		rates  []model.FundingRate
		prices []model.Price
		limits []model.InstrumentLimit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := gw.GetFundingRates(gctx)
		if err != nil {
			return fmt.Errorf("funding rates: %w", err)
		}
		rates = r
		return nil
	})
	g.Go(func() error {
		p, err := gw.GetPrices(gctx, "")
		if err != nil {
			return fmt.Errorf("prices: %w", err)
		}
		prices = p
		return nil
	})
	g.Go(func() error {
		l, err := gw.GetInstrumentLimits(gctx)
		if err != nil {
			return fmt.Errorf("instrument limits: %w", err)
		}
		limits = l
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh %s: %w", venue, err)
	}
	if len(rates) == 0 {
		return fmt.Errorf("refresh %s: %w", venue, ErrEmptySnapshot)
	}

	snap := buildSnapshot(venue, rates, prices, limits, time.Now())

	mu := c.writeMu[venue]
	mu.Lock()
	c.snapshots[venue].Store(snap)
	mu.Unlock()

	log.Debug().
		Str("venue", venue).
		Int("funding", len(snap.Funding)).
		Int("prices", len(snap.Prices)).
		Int("limits", len(snap.Limits)).
		Msg("market data refreshed")
	return nil
}

// RefreshAll 并发刷新所有交易所，返回每个失败交易所的错误
func (c *MarketDataCache) RefreshAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, venue := range c.Venues() {
		venue := venue
		g.Go(func() error {
			if err := c.Refresh(ctx, venue); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// ApplyFundingRates 合并流式推送的费率，复制后整体替换
func (c *MarketDataCache) ApplyFundingRates(venue string, rates []model.FundingRate) {
	ptr := c.snapshots[venue]
	if ptr == nil || len(rates) == 0 {
		return
	}

	mu := c.writeMu[venue]
	mu.Lock()
	defer mu.Unlock()

	old := ptr.Load()
	next := &Snapshot{Venue: venue, UpdatedAt: time.Now()}
	if old != nil {
		next.Prices = old.Prices
		next.Limits = old.Limits
		next.Funding = make(map[string]model.FundingRate, len(old.Funding)+len(rates))
		for k, v := range old.Funding {
			next.Funding[k] = v
		}
	} else {
		next.Prices = map[string]model.Price{}
		next.Limits = map[string]model.InstrumentLimit{}
		next.Funding = make(map[string]model.FundingRate, len(rates))
	}
	for _, r := range rates {
		r.Venue = venue
		r.Symbol = domainservice.NormalizeSymbol(r.Symbol, venue)
		if r.Symbol == "" {
			continue
		}
		if prev, ok := next.Funding[r.Symbol]; ok && r.IntervalHours <= 0 {
			r.IntervalHours = prev.IntervalHours
		}
		next.Funding[r.Symbol] = r
	}
	ptr.Store(next)
}

// Snapshot 返回交易所当前快照，未刷新过时为 nil
func (c *MarketDataCache) Snapshot(venue string) *Snapshot {
	ptr := c.snapshots[venue]
	if ptr == nil {
		return nil
	}
	return ptr.Load()
}

// Funding 查询资金费率
func (c *MarketDataCache) Funding(venue, symbol string) (*model.FundingRate, bool) {
	snap := c.Snapshot(venue)
	if snap == nil {
		return nil, false
	}
	r, ok := snap.Funding[domainservice.NormalizeSymbol(symbol, venue)]
	if !ok {
		return nil, false
	}
	return &r, true
}

// Price 查询最新价格
func (c *MarketDataCache) Price(venue, symbol string) (*model.Price, bool) {
	snap := c.Snapshot(venue)
	if snap == nil {
		return nil, false
	}
	p, ok := snap.Prices[domainservice.NormalizeSymbol(symbol, venue)]
	if !ok {
		return nil, false
	}
	return &p, true
}

// Limit 查询下单限制
func (c *MarketDataCache) Limit(venue, symbol string) (*model.InstrumentLimit, bool) {
	snap := c.Snapshot(venue)
	if snap == nil {
		return nil, false
	}
	l, ok := snap.Limits[domainservice.NormalizeSymbol(symbol, venue)]
	if !ok {
		return nil, false
	}
	return &l, true
}

func buildSnapshot(venue string, rates []model.FundingRate, prices []model.Price, limits []model.InstrumentLimit, now time.Time) *Snapshot {
	snap := &Snapshot{
		Venue:     venue,
		Funding:   make(map[string]model.FundingRate, len(rates)),
		Prices:    make(map[string]model.Price, len(prices)),
		Limits:    make(map[string]model.InstrumentLimit, len(limits)),
		UpdatedAt: now,
	}
	for _, r := range rates {
		r.Venue = venue
		r.Symbol = domainservice.NormalizeSymbol(r.Symbol, venue)
		if r.Symbol != "" {
			snap.Funding[r.Symbol] = r
		}
	}
	for _, p := range prices {
		p.Venue = venue
		p.Symbol = domainservice.NormalizeSymbol(p.Symbol, venue)
		if p.Symbol != "" {
			snap.Prices[p.Symbol] = p
		}
	}
	for _, l := range limits {
		l.Venue = venue
		l.Symbol = domainservice.NormalizeSymbol(l.Symbol, venue)
		if l.Symbol != "" {
			snap.Limits[l.Symbol] = l
		}
	}
	return snap
}
