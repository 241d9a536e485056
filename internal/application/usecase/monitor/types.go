package monitor

import (
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Board 一轮看板结果
type Board struct {
	At    time.Time
	Diffs []model.FundingDiff
	Top   map[string][]model.FundingRate // venue -> |rate| 前 N
}

type nopSink struct{}

// NopSink 不输出看板
func NopSink() port.Sink { return nopSink{} }

func (nopSink) WriteBoard(time.Time, string, []string) error { return nil }
func (nopSink) NewLine() error                                { return nil }
