package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/storage"
)

// Repo 把最新费率写入 hash，信号写入 stream，告警走 pub/sub
type Repo struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	signalStream string
	alertChan    string
	maxLen       int64
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, signalStream, alertChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "fundarb"
	}
	if strings.TrimSpace(signalStream) == "" {
		signalStream = prefix + ":signals"
	}
	if strings.TrimSpace(alertChan) == "" {
		alertChan = prefix + ":alerts"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		signalStream: signalStream,
		alertChan:    alertChan,
		maxLen:       10000,
	}
}

// FundingKey hash: field = symbol -> json
func (r *Repo) FundingKey(venue string) string {
	return r.prefix + ":funding:" + strings.ToLower(venue)
}

func (r *Repo) RecordFundingSnapshot(ctx context.Context, venue string, rates []model.FundingRate) error {
	if len(rates) == 0 {
		return nil
	}
	key := r.FundingKey(venue)
	fields := make(map[string]any, len(rates))
	for _, fr := range rates {
		b, err := json.Marshal(fr)
		if err != nil {
			continue
		}
		fields[fr.Symbol] = string(b)
	}

	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Repo) RecordSignal(ctx context.Context, sig model.Signal) error {
	// XADD <stream> MAXLEN ~ n * ...
	return r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.signalStream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"ts_ms":       sig.Timestamp.UnixMilli(),
			"symbol":      sig.Symbol,
			"long_venue":  sig.LongVenue,
			"short_venue": sig.ShortVenue,
			"edge":        sig.Edge,
			"payload":     storage.Payload(sig),
		},
	}).Err()
}

func (r *Repo) RecordAlert(ctx context.Context, a model.Alert) error {
	return r.rdb.Publish(ctx, r.alertChan, storage.Payload(a)).Err()
}

// RecentSignals 从 stream 尾部倒序读取
func (r *Repo) RecentSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := r.rdb.XRevRangeN(ctx, r.signalStream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Signal, 0, len(msgs))
	for _, m := range msgs {
		payload, ok := m.Values["payload"].(string)
		if !ok {
			continue
		}
		var sig model.Signal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

func (r *Repo) Close() error { return r.rdb.Close() }

var (
	_ port.Journal         = (*Repo)(nil)
	_ storage.SignalReader = (*Repo)(nil)
)
