package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// PositionService 实时读取各交易所持仓，不做缓存
type PositionService struct {
	gateways port.GatewayRegistry
	timeout  time.Duration
}

// NewPositionService 创建持仓服务
func NewPositionService(gateways port.GatewayRegistry, timeout time.Duration) *PositionService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PositionService{gateways: gateways, timeout: timeout}
}

// FetchAll 并发读取所有交易所的非空持仓
// 单个交易所失败不影响其他交易所，错误按交易所合并返回。
func (s *PositionService) FetchAll(ctx context.Context) ([]model.Position, error) {
	venues := s.gateways.Venues()
	var (
		g    errgroup.Group
		mu   sync.Mutex
		out  []model.Position
		errs []error
	)
	for _, venue := range venues {
		venue := venue
		gw, ok := s.gateways.Get(venue)
		if !ok {
			continue
		}
		g.Go(func() error {
			positions, err := withTimeout(ctx, s.timeout, gw.GetPositions)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, &VenueError{Venue: venue, Err: err})
				return nil
			}
			for _, p := range positions {
				if p.Empty() {
					continue
				}
				p.Venue = venue
				p.Symbol = domainservice.NormalizeSymbol(p.Symbol, venue)
				out = append(out, p)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Venue < out[j].Venue
	})
	return out, errors.Join(errs...)
}

// VenueError 单个交易所调用失败
type VenueError struct {
	Venue string
	Err   error
}

func (e *VenueError) Error() string { return fmt.Sprintf("%s: %v", e.Venue, e.Err) }
func (e *VenueError) Unwrap() error { return e.Err }
