package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// ExecutionState 开平仓状态机
type ExecutionState string

const (
	StateReceived       ExecutionState = "RECEIVED"
	StateLeverageSet    ExecutionState = "LEVERAGE_SET"
	StatePriced         ExecutionState = "PRICED"
	StateSized          ExecutionState = "SIZED"
	StateSubmitted      ExecutionState = "SUBMITTED"
	StateDone           ExecutionState = "DONE"
	StatePartialFailure ExecutionState = "PARTIAL_FAILURE"
	StateFailed         ExecutionState = "FAILED"
	StateRejected       ExecutionState = "REJECTED" // 未提交任何订单
)

// Terminal 是否终态
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateDone, StatePartialFailure, StateFailed, StateRejected:
		return true
	}
	return false
}

const (
	ActionOpen  = "open"
	ActionClose = "close"
)

// ExecutionConfig 下单参数
type ExecutionConfig struct {
	PriceOffsetPct float64         // 限价偏移百分比，0.1 表示 0.1%
	LegTimeout     time.Duration   // 单腿单次网关调用超时
	CloseOrderType model.OrderType // 平仓订单类型
}

// LegResult 单腿执行结果
type LegResult struct {
	Venue        string             `json:"venue"`
	Side         model.Side         `json:"side"`
	PositionSide model.PositionSide `json:"position_side"`
	OrderType    model.OrderType    `json:"order_type"`
	Price        float64            `json:"price,omitempty"`
	Quantity     float64            `json:"quantity"`
	OrderID      string             `json:"order_id,omitempty"`
	State        ExecutionState     `json:"state"`
	NoOp         bool               `json:"no_op,omitempty"` // 平仓时该腿无持仓
	Err          error              `json:"-"`
	LeverageErr  error              `json:"-"`

	submitted bool
}

// ErrText 错误文本，供序列化
func (l LegResult) ErrText() string {
	if l.Err == nil {
		return ""
	}
	return l.Err.Error()
}

// ExecutionResult 一次开平仓命令的完整记录
type ExecutionResult struct {
	ID          string               `json:"id"`
	Action      string               `json:"action"`
	Symbol      string               `json:"symbol"`
	State       ExecutionState       `json:"state"`
	Decision    *model.TradeDecision `json:"decision,omitempty"`
	Legs        []LegResult          `json:"legs"`
	Transitions []ExecutionState     `json:"transitions"`
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
}

func (r *ExecutionResult) advance(s ExecutionState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// Actions 实际提交到交易所的订单数
func (r *ExecutionResult) Actions() int {
	n := 0
	for _, l := range r.Legs {
		if l.submitted {
			n++
		}
	}
	return n
}

// OpenRequest 开仓命令
type OpenRequest struct {
	VenueA       string  `json:"venue_a"`
	VenueB       string  `json:"venue_b"`
	Symbol       string  `json:"symbol"`
	MarginPerLeg float64 `json:"margin"`
	Leverage     int     `json:"leverage"`
}

// CloseRequest 平仓命令
type CloseRequest struct {
	VenueA string `json:"venue_a"`
	VenueB string `json:"venue_b"`
	Symbol string `json:"symbol"`
}

// ExecutionService 双腿开平仓编排
// 两条腿并发执行，不回滚、不重试、不撤单。
type ExecutionService struct {
	gateways port.GatewayRegistry
	cache    *MarketDataCache
	signals  *SignalService
	guard    *SymbolGuard
	notifier port.Notifier
	metrics  port.Metrics
	cfg      ExecutionConfig
}

// NewExecutionService 创建执行服务
func NewExecutionService(
	gateways port.GatewayRegistry,
	cache *MarketDataCache,
	signals *SignalService,
	guard *SymbolGuard,
	notifier port.Notifier,
	metrics port.Metrics,
	cfg ExecutionConfig,
) *ExecutionService {
	if cfg.LegTimeout <= 0 {
		cfg.LegTimeout = 10 * time.Second
	}
	if cfg.CloseOrderType == "" {
		cfg.CloseOrderType = model.OrderTypeMarket
	}
	if guard == nil {
		guard = NewSymbolGuard()
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &ExecutionService{
		gateways: gateways,
		cache:    cache,
		signals:  signals,
		guard:    guard,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Open 按信号方向在两个交易所开对冲仓
// 任一腿在提交前失败则两腿都不提交（REJECTED）；提交后部分失败返回 ErrPartialExecution。
func (s *ExecutionService) Open(ctx context.Context, req OpenRequest) (*ExecutionResult, error) {
	symbol := domainservice.NormalizeSymbol(req.Symbol, "")
	res := newResult(ActionOpen, symbol)

	if err := s.validateVenues(req.VenueA, req.VenueB, symbol); err != nil {
		res.advance(StateRejected)
		return res, err
	}
	if req.MarginPerLeg <= 0 || req.Leverage < 1 {
		res.advance(StateRejected)
		return res, fmt.Errorf("%w: margin=%v leverage=%d", ErrInvalidRequest, req.MarginPerLeg, req.Leverage)
	}

	release, ok := s.guard.TryAcquire(GuardKey(symbol, req.VenueA, req.VenueB))
	if !ok {
		res.advance(StateRejected)
		return res, fmt.Errorf("%w: %s", ErrOperationInFlight, symbol)
	}
	defer release()

	sig, err := s.signals.Evaluate(ctx, req.VenueA, req.VenueB, symbol)
	if err != nil {
		return s.reject(ctx, res, err)
	}
	res.Decision = &model.TradeDecision{
		VenueA:       req.VenueA,
		VenueB:       req.VenueB,
		Symbol:       symbol,
		LongVenue:    sig.LongVenue,
		ShortVenue:   sig.ShortVenue,
		MarginPerLeg: req.MarginPerLeg,
		Leverage:     req.Leverage,
		Edge:         sig.Edge,
	}
	log.Info().
		Str("id", res.ID).
		Str("symbol", symbol).
		Str("long", sig.LongVenue).
		Str("short", sig.ShortVenue).
		Float64("edge", sig.Edge).
		Bool("flipped", sig.Flipped).
		Msg("open decision")

	res.Legs = []LegResult{
		{Venue: sig.LongVenue, Side: model.SideBuy, PositionSide: model.PositionLong, OrderType: model.OrderTypeLimit},
		{Venue: sig.ShortVenue, Side: model.SideSell, PositionSide: model.PositionShort, OrderType: model.OrderTypeLimit},
	}

	// 杠杆：尽力设置，失败只记录
	s.eachLeg(res, func(leg *LegResult, gw port.ExchangeGateway) error {
		_, err := withTimeout(ctx, s.cfg.LegTimeout, func(c context.Context) (struct{}, error) {
			return struct{}{}, gw.SetLeverage(c, symbol, req.Leverage)
		})
		if err != nil {
			leg.LeverageErr = err
			log.Warn().Err(err).Str("id", res.ID).Str("venue", leg.Venue).Int("leverage", req.Leverage).
				Msg("set leverage failed, continuing with current leverage")
		}
		return nil
	})
	res.advance(StateLeverageSet)

	if err := s.eachLeg(res, func(leg *LegResult, gw port.ExchangeGateway) error {
		return s.priceLeg(ctx, leg, gw, symbol)
	}); err != nil {
		return s.reject(ctx, res, err)
	}
	res.advance(StatePriced)

	if err := s.eachLeg(res, func(leg *LegResult, _ port.ExchangeGateway) error {
		limit, ok := s.cache.Limit(leg.Venue, symbol)
		if !ok {
			return fmt.Errorf("%w: no instrument limit for %s on %s", ErrQuantityInvalid, symbol, leg.Venue)
		}
		qty, err := domainservice.SizeOrder(req.MarginPerLeg, req.Leverage, leg.Price, *limit)
		if err != nil {
			return fmt.Errorf("%s: %w", leg.Venue, err)
		}
		leg.Quantity = qty
		return nil
	}); err != nil {
		return s.reject(ctx, res, err)
	}
	res.advance(StateSized)

	return s.submit(ctx, res, symbol, false)
}

// Close 平掉两个交易所上该 symbol 的全部持仓
// 无持仓的腿视为空操作。
func (s *ExecutionService) Close(ctx context.Context, req CloseRequest) (*ExecutionResult, error) {
	symbol := domainservice.NormalizeSymbol(req.Symbol, "")
	res := newResult(ActionClose, symbol)

	if err := s.validateVenues(req.VenueA, req.VenueB, symbol); err != nil {
		res.advance(StateRejected)
		return res, err
	}

	release, err := s.guard.Acquire(ctx, GuardKey(symbol, req.VenueA, req.VenueB))
	if err != nil {
		res.advance(StateRejected)
		return res, fmt.Errorf("%w: %v", ErrOperationInFlight, err)
	}
	defer release()

	venues := []string{req.VenueA, req.VenueB}
	found := make([][]model.Position, len(venues))
	fetchErr := make([]error, len(venues))
	var g errgroup.Group
	for i, venue := range venues {
		i, venue := i, venue
		gw, _ := s.gateways.Get(venue)
		g.Go(func() error {
			positions, err := withTimeout(ctx, s.cfg.LegTimeout, gw.GetPositions)
			if err != nil {
				fetchErr[i] = fmt.Errorf("get positions: %w", err)
				return nil
			}
			for _, p := range positions {
				if p.Empty() || domainservice.NormalizeSymbol(p.Symbol, venue) != symbol {
					continue
				}
				found[i] = append(found[i], p)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, venue := range venues {
		if fetchErr[i] != nil {
			res.Legs = append(res.Legs, LegResult{Venue: venue, State: StateFailed, Err: fetchErr[i]})
			continue
		}
		if len(found[i]) == 0 {
			res.Legs = append(res.Legs, LegResult{Venue: venue, State: StateDone, NoOp: true})
			continue
		}
		for _, p := range found[i] {
			res.Legs = append(res.Legs, LegResult{
				Venue:        venue,
				Side:         p.CloseSide(),
				PositionSide: p.Side,
				OrderType:    s.cfg.CloseOrderType,
				Quantity:     p.Quantity,
			})
		}
	}

	// 平仓优先：取不到价格的腿记为失败，其余腿照常提交
	if s.cfg.CloseOrderType == model.OrderTypeLimit {
		_ = s.eachLeg(res, func(leg *LegResult, gw port.ExchangeGateway) error {
			if err := s.priceLeg(ctx, leg, gw, symbol); err != nil {
				leg.State = StateFailed
				leg.Err = err
			}
			return nil
		})
	}
	res.advance(StatePriced)
	res.advance(StateSized)

	return s.submit(ctx, res, symbol, true)
}

func (s *ExecutionService) validateVenues(venueA, venueB, symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	}
	if venueA == venueB {
		return fmt.Errorf("%w: venues must differ", ErrInvalidRequest)
	}
	for _, v := range []string{venueA, venueB} {
		if _, ok := s.gateways.Get(v); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownVenue, v)
		}
	}
	return nil
}

// eachLeg 对仍需处理的腿并发执行 fn，返回所有失败的合并错误
// 跳过空操作与已失败的腿。
func (s *ExecutionService) eachLeg(res *ExecutionResult, fn func(leg *LegResult, gw port.ExchangeGateway) error) error {
	errs := make([]error, len(res.Legs))
	var g errgroup.Group
	for i := range res.Legs {
		i := i
		leg := &res.Legs[i]
		if leg.NoOp || leg.State == StateFailed {
			continue
		}
		gw, ok := s.gateways.Get(leg.Venue)
		if !ok {
			errs[i] = fmt.Errorf("%w: %s", ErrUnknownVenue, leg.Venue)
			continue
		}
		g.Go(func() error {
			errs[i] = fn(leg, gw)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// priceLeg 取实时价格并按方向偏移
func (s *ExecutionService) priceLeg(ctx context.Context, leg *LegResult, gw port.ExchangeGateway, symbol string) error {
	prices, err := withTimeout(ctx, s.cfg.LegTimeout, func(c context.Context) ([]model.Price, error) {
		return gw.GetPrices(c, symbol)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, leg.Venue, err)
	}
	var ref *model.Price
	for i := range prices {
		if domainservice.NormalizeSymbol(prices[i].Symbol, leg.Venue) == symbol && prices[i].LastPrice > 0 {
			ref = &prices[i]
			break
		}
	}
	if ref == nil {
		return fmt.Errorf("%w: %s has no price for %s", ErrPriceUnavailable, leg.Venue, symbol)
	}
	leg.Price = domainservice.OffsetPrice(ref.LastPrice, s.cfg.PriceOffsetPct, ref.DecimalScale, leg.Side == model.SideBuy)
	if leg.Price <= 0 {
		return fmt.Errorf("%w: %s offset price is zero", ErrPriceUnavailable, leg.Venue)
	}
	return nil
}

// submit 并发提交所有待提交的腿，按结果决定终态
func (s *ExecutionService) submit(ctx context.Context, res *ExecutionResult, symbol string, reduceOnly bool) (*ExecutionResult, error) {
	pending := 0
	for _, l := range res.Legs {
		if !l.NoOp && l.State != StateFailed {
			pending++
		}
	}
	if pending > 0 {
		res.advance(StateSubmitted)
	}

	_ = s.eachLeg(res, func(leg *LegResult, gw port.ExchangeGateway) error {
		order := model.OrderRequest{
			Symbol:        symbol,
			Side:          leg.Side,
			PositionSide:  leg.PositionSide,
			Type:          leg.OrderType,
			Quantity:      leg.Quantity,
			ReduceOnly:    reduceOnly,
			ClientOrderID: newClientOrderID(),
		}
		if leg.OrderType == model.OrderTypeLimit {
			order.Price = leg.Price
		}
		leg.submitted = true
		id, err := withTimeout(ctx, s.cfg.LegTimeout, func(c context.Context) (string, error) {
			return gw.PlaceOrder(c, order)
		})
		if err != nil {
			leg.State = StateFailed
			leg.Err = err
			return nil
		}
		leg.OrderID = id
		leg.State = StateDone
		return nil
	})

	var ok, failed int
	var errs []error
	for _, l := range res.Legs {
		switch {
		case l.NoOp:
		case l.State == StateDone:
			ok++
		default:
			failed++
			errs = append(errs, fmt.Errorf("%s: %w", l.Venue, l.Err))
		}
		s.metrics.LegFinished(l.Venue, res.Action, string(l.State))
	}

	var err error
	switch {
	case failed == 0:
		res.advance(StateDone)
	case ok > 0:
		res.advance(StatePartialFailure)
		err = fmt.Errorf("%w: %w", ErrPartialExecution, errors.Join(errs...))
	default:
		res.advance(StateFailed)
		err = errors.Join(errs...)
	}
	res.FinishedAt = time.Now()

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("id", res.ID).
		Str("action", res.Action).
		Str("symbol", symbol).
		Str("state", string(res.State)).
		Int("actions", res.Actions()).
		Msg("execution finished")

	s.notify(ctx, res)
	return res, err
}

func (s *ExecutionService) reject(ctx context.Context, res *ExecutionResult, cause error) (*ExecutionResult, error) {
	res.advance(StateRejected)
	res.FinishedAt = time.Now()
	log.Warn().Err(cause).Str("id", res.ID).Str("action", res.Action).Str("symbol", res.Symbol).Msg("execution rejected")
	if s.notifier != nil {
		s.notifier.Notify(ctx, fmt.Sprintf("⛔ %s %s 未执行: %v", res.Action, res.Symbol, cause))
	}
	return res, cause
}

func (s *ExecutionService) notify(ctx context.Context, res *ExecutionResult) {
	if s.notifier == nil {
		return
	}
	var b strings.Builder
	icon := "✅"
	if res.State != StateDone {
		icon = "❌"
	}
	fmt.Fprintf(&b, "%s %s %s %s", icon, res.Action, res.Symbol, res.State)
	for _, l := range res.Legs {
		switch {
		case l.NoOp:
			fmt.Fprintf(&b, "\n%s: 无持仓", l.Venue)
		case l.Err != nil:
			fmt.Fprintf(&b, "\n%s %s %s 失败: %v", l.Venue, l.Side, domainservice.FormatDecimal(l.Quantity), l.Err)
		default:
			fmt.Fprintf(&b, "\n%s %s %s @ %s 订单 %s", l.Venue, l.Side,
				domainservice.FormatDecimal(l.Quantity), priceLabel(l), l.OrderID)
		}
	}
	s.notifier.Notify(ctx, b.String())
}

func priceLabel(l LegResult) string {
	if l.OrderType == model.OrderTypeMarket {
		return "MARKET"
	}
	return domainservice.FormatDecimal(l.Price)
}

func newResult(action, symbol string) *ExecutionResult {
	res := &ExecutionResult{
		ID:        uuid.NewString(),
		Action:    action,
		Symbol:    symbol,
		StartedAt: time.Now(),
	}
	res.advance(StateReceived)
	return res
}

// newClientOrderID 32 位十六进制，满足各交易所 clientOid 长度限制
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// withTimeout 即使网关忽略 ctx 也会按时返回
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("timeout after %s: %w", d, ctx.Err())
	}
}
