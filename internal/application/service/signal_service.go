package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// SignalService 基于行情缓存计算开仓方向
type SignalService struct {
	cache   *MarketDataCache
	policy  domainservice.SettlementPolicy
	journal port.Journal
	now     func() time.Time
}

// NewSignalService 创建信号服务
func NewSignalService(cache *MarketDataCache, policy domainservice.SettlementPolicy, journal port.Journal) *SignalService {
	return &SignalService{
		cache:   cache,
		policy:  policy,
		journal: journal,
		now:     time.Now,
	}
}

// Evaluate 计算 venueA/venueB 在 symbol 上的信号
// 任一交易所缺少费率时返回 ErrSignalUnavailable。
func (s *SignalService) Evaluate(ctx context.Context, venueA, venueB, symbol string) (model.Signal, error) {
	symbol = domainservice.NormalizeSymbol(symbol, "")
	a, okA := s.cache.Funding(venueA, symbol)
	b, okB := s.cache.Funding(venueB, symbol)
	if !okA || !okB {
		missing := venueA
		if okA {
			missing = venueB
		}
		return model.Signal{}, fmt.Errorf("%w: no funding rate for %s on %s", ErrSignalUnavailable, symbol, missing)
	}

	now := s.now()
	d, err := domainservice.Decide(a, b, now, s.policy)
	if err != nil {
		return model.Signal{}, err
	}

	sig := model.Signal{
		Symbol:     symbol,
		VenueA:     venueA,
		VenueB:     venueB,
		RateA:      a.Rate,
		RateB:      b.Rate,
		IntervalA:  a.IntervalHours,
		IntervalB:  b.IntervalHours,
		LongVenue:  d.LongVenue,
		ShortVenue: d.ShortVenue,
		Edge:       d.Edge,
		Flipped:    d.Flipped,
		Timestamp:  now,
	}

	if s.journal != nil {
		if err := s.journal.RecordSignal(ctx, sig); err != nil {
			log.Debug().Err(err).Str("symbol", symbol).Msg("journal signal failed")
		}
	}
	return sig, nil
}
