package composite

import (
	"context"
	"errors"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

// Repo 同时写入多个 Journal，返回第一个错误
type Repo struct {
	repos []port.Journal
}

func New(repos ...port.Journal) *Repo {
	out := make([]port.Journal, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) RecordFundingSnapshot(ctx context.Context, venue string, rates []model.FundingRate) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.RecordFundingSnapshot(ctx, venue, rates); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) RecordSignal(ctx context.Context, sig model.Signal) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.RecordSignal(ctx, sig); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) RecordAlert(ctx context.Context, a model.Alert) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.RecordAlert(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RecentSignals 使用第一个支持查询的存储
func (r *Repo) RecentSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	for _, repo := range r.repos {
		if reader, ok := repo.(storage.SignalReader); ok {
			return reader.RecentSignals(ctx, limit)
		}
	}
	return nil, nil
}

func (r *Repo) Close() error {
	var errs []error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ port.Journal         = (*Repo)(nil)
	_ storage.SignalReader = (*Repo)(nil)
)
