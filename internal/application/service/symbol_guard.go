package service

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// SymbolGuard 同一 (交易所组合, symbol) 上的开平仓互斥
type SymbolGuard struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewSymbolGuard 创建互斥表
func NewSymbolGuard() *SymbolGuard {
	return &SymbolGuard{slots: make(map[string]chan struct{})}
}

// GuardKey 交易所顺序无关
func GuardKey(symbol string, venues ...string) string {
	vs := append([]string(nil), venues...)
	sort.Strings(vs)
	return strings.Join(vs, "+") + "|" + symbol
}

func (g *SymbolGuard) slot(key string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		g.slots[key] = ch
	}
	return ch
}

// TryAcquire 不等待，已被占用时返回 false
func (g *SymbolGuard) TryAcquire(key string) (func(), bool) {
	ch := g.slot(key)
	select {
	case ch <- struct{}{}:
		return releaseOnce(ch), true
	default:
		return nil, false
	}
}

// Acquire 等待直到获得或 ctx 结束
func (g *SymbolGuard) Acquire(ctx context.Context, key string) (func(), error) {
	ch := g.slot(key)
	select {
	case ch <- struct{}{}:
		return releaseOnce(ch), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func releaseOnce(ch chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}
}
