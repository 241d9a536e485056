package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
)

type ServiceDeps struct {
	Cache     *service.MarketDataCache
	Signals   *service.SignalService // 为空时不记录信号
	Sink      port.Sink
	Symbols   []string
	TopN      int
	Interval  time.Duration
	Threshold float64
	Color     bool
}

// Service 机会看板：定期按费率差排序并输出
type Service struct {
	deps   ServiceDeps
	filter symbolFilter
	fmt    *Formatter

	mu   sync.RWMutex
	last *Board
}

func NewService(deps ServiceDeps) *Service {
	if deps.TopN <= 0 {
		deps.TopN = 10
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Minute
	}
	if deps.Sink == nil {
		deps.Sink = NopSink()
	}
	return &Service{
		deps:   deps,
		filter: newSymbolFilter(deps.Symbols),
		fmt:    NewFormatter(deps.Threshold, deps.Color),
	}
}

func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	s.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return nil
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick 计算并输出一轮看板
func (s *Service) Tick(ctx context.Context, now time.Time) *Board {
	b := &Board{
		At:    now,
		Diffs: RankDiffs(s.deps.Cache, s.filter, s.deps.TopN),
		Top:   make(map[string][]model.FundingRate),
	}
	for _, venue := range s.deps.Cache.Venues() {
		b.Top[venue] = TopRates(s.deps.Cache.Snapshot(venue), s.filter, s.deps.TopN)
	}

	lines := s.fmt.RenderDiffs(b.Diffs)
	for _, venue := range s.deps.Cache.Venues() {
		lines = append(lines, s.fmt.RenderRates(venue, b.Top[venue])...)
	}
	if err := s.deps.Sink.WriteBoard(now, "FUNDING BOARD", lines); err != nil {
		log.Debug().Err(err).Msg("board sink write failed")
	}

	if s.deps.Signals != nil {
		for _, d := range b.Diffs {
			if _, err := s.deps.Signals.Evaluate(ctx, d.VenueA, d.VenueB, d.Symbol); err != nil {
				log.Debug().Err(err).Str("symbol", d.Symbol).Msg("board signal skipped")
			}
		}
	}

	s.mu.Lock()
	s.last = b
	s.mu.Unlock()
	return b
}

// Last 最近一轮结果，未运行过时为 nil
func (s *Service) Last() *Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
