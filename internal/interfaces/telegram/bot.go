// Package telegram 通过 getUpdates 长轮询接收指令，只接受配置的会话
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/notify"
)

// Client Bot API 子集
type Client interface {
	ChatID() int64
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]notify.Update, error)
	Send(ctx context.Context, chatID int64, text string) error
}

type Executor interface {
	Open(ctx context.Context, req service.OpenRequest) (*service.ExecutionResult, error)
	Close(ctx context.Context, req service.CloseRequest) (*service.ExecutionResult, error)
}

type SignalEvaluator interface {
	Evaluate(ctx context.Context, venueA, venueB, symbol string) (model.Signal, error)
}

type PositionFetcher interface {
	FetchAll(ctx context.Context) ([]model.Position, error)
}

type BillReporter interface {
	Summarize(ctx context.Context) ([]model.BillSummary, error)
}

type Deps struct {
	Executor     Executor
	Signals      SignalEvaluator
	Positions    PositionFetcher
	Bills        BillReporter // 可选
	BillLookback time.Duration
}

// Bot 指令机器人
type Bot struct {
	client      Client
	deps        Deps
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewBot(client Client, deps Deps, pollTimeout time.Duration) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Bot{
		client:      client,
		deps:        deps,
		pollTimeout: pollTimeout,
		retryDelay:  3 * time.Second,
	}
}

// SetRetryDelay getUpdates 失败后的等待时间
func (b *Bot) SetRetryDelay(d time.Duration) {
	if d > 0 {
		b.retryDelay = d
	}
}

const helpText = `指令:
/open <venueA> <venueB> <symbol> <margin> <leverage>
/close <venueA> <venueB> <symbol>
/signal <venueA> <venueB> <symbol>
/positions
/bills
交易所: bn okx bg by`

func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	log.Info().Int64("chat", b.client.ChatID()).Msg("telegram command bot started")
	for {
		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Msg("telegram getUpdates failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(b.retryDelay):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, u notify.Update) {
	if u.Message == nil || u.Message.Text == "" {
		return
	}
	chat := u.Message.Chat.ID
	if chat != b.client.ChatID() {
		log.Warn().Int64("chat", chat).Int64("from", u.Message.From.ID).Msg("telegram command from unknown chat ignored")
		return
	}

	reply := b.Handle(ctx, u.Message.Text)
	if reply == "" {
		return
	}
	if err := b.client.Send(ctx, chat, reply); err != nil {
		log.Error().Err(err).Msg("telegram reply failed")
	}
}

// Handle 执行一条指令并返回回复文本，非指令返回空串
func (b *Bot) Handle(ctx context.Context, text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	// /open@MyBot 形式
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	log.Info().Str("cmd", cmd).Strs("args", args).Msg("telegram command")

	switch cmd {
	case "/open":
		return b.open(ctx, args)
	case "/close":
		return b.close(ctx, args)
	case "/signal":
		return b.signal(ctx, args)
	case "/positions":
		return b.positions(ctx)
	case "/bills":
		return b.bills(ctx)
	case "/start", "/help":
		return helpText
	}
	return "未知指令 " + cmd + "\n" + helpText
}

func (b *Bot) open(ctx context.Context, args []string) string {
	if len(args) != 5 {
		return "用法: /open <venueA> <venueB> <symbol> <margin> <leverage>"
	}
	venueA, venueB, err := resolvePair(args[0], args[1])
	if err != nil {
		return err.Error()
	}
	margin, err := strconv.ParseFloat(args[3], 64)
	if err != nil || margin <= 0 {
		return "保证金无效: " + args[3]
	}
	leverage, err := strconv.Atoi(args[4])
	if err != nil || leverage < 1 {
		return "杠杆无效: " + args[4]
	}

	res, err := b.deps.Executor.Open(ctx, service.OpenRequest{
		VenueA:       venueA,
		VenueB:       venueB,
		Symbol:       args[2],
		MarginPerLeg: margin,
		Leverage:     leverage,
	})
	return formatExecution(res, err)
}

func (b *Bot) close(ctx context.Context, args []string) string {
	if len(args) != 3 {
		return "用法: /close <venueA> <venueB> <symbol>"
	}
	venueA, venueB, err := resolvePair(args[0], args[1])
	if err != nil {
		return err.Error()
	}
	res, err := b.deps.Executor.Close(ctx, service.CloseRequest{VenueA: venueA, VenueB: venueB, Symbol: args[2]})
	return formatExecution(res, err)
}

func (b *Bot) signal(ctx context.Context, args []string) string {
	if len(args) != 3 {
		return "用法: /signal <venueA> <venueB> <symbol>"
	}
	venueA, venueB, err := resolvePair(args[0], args[1])
	if err != nil {
		return err.Error()
	}
	sig, err := b.deps.Signals.Evaluate(ctx, venueA, venueB, args[2])
	if err != nil {
		return "信号不可用: " + err.Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n%s %s (%dh)\n%s %s (%dh)\n做多 %s / 做空 %s\n价差 %s",
		sig.Symbol,
		sig.VenueA, pct(sig.RateA), sig.IntervalA,
		sig.VenueB, pct(sig.RateB), sig.IntervalB,
		sig.LongVenue, sig.ShortVenue, pct(sig.Edge))
	if sig.Flipped {
		sb.WriteString("\n结算窗口内，方向已反转")
	}
	return sb.String()
}

func (b *Bot) positions(ctx context.Context) string {
	positions, err := b.deps.Positions.FetchAll(ctx)
	var sb strings.Builder
	if len(positions) == 0 {
		sb.WriteString("无持仓")
	}
	for i, p := range positions {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s %s %s %s @ %s 保证金 %.2f 未实现 %.2f",
			p.Venue, p.Symbol, p.Side,
			domainservice.FormatDecimal(p.Quantity), domainservice.FormatDecimal(p.EntryPrice),
			p.Margin, p.UnrealizedPnl)
	}
	if err != nil {
		fmt.Fprintf(&sb, "\n⚠️ %v", err)
	}
	return sb.String()
}

func (b *Bot) bills(ctx context.Context) string {
	if b.deps.Bills == nil {
		return "账单未启用"
	}
	summaries, err := b.deps.Bills.Summarize(ctx)
	text := service.FormatBills(summaries, b.deps.BillLookback)
	if err != nil {
		text += fmt.Sprintf("\n⚠️ %v", err)
	}
	return text
}

func formatExecution(res *service.ExecutionResult, err error) string {
	if res == nil {
		return "执行失败: " + err.Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", res.Action, res.Symbol, res.State)
	for _, l := range res.Legs {
		switch {
		case l.NoOp:
			fmt.Fprintf(&sb, "\n%s 无持仓", l.Venue)
		case l.Err != nil:
			fmt.Fprintf(&sb, "\n%s %s 失败: %v", l.Venue, l.Side, l.Err)
		case l.OrderID != "":
			fmt.Fprintf(&sb, "\n%s %s %s 订单 %s", l.Venue, l.Side, domainservice.FormatDecimal(l.Quantity), l.OrderID)
		}
	}
	if err != nil && res.State == service.StateRejected {
		fmt.Fprintf(&sb, "\n原因: %v", err)
	}
	return sb.String()
}

func resolvePair(a, b string) (string, string, error) {
	venueA, ok := model.ResolveVenue(a)
	if !ok {
		return "", "", fmt.Errorf("未知交易所: %s", a)
	}
	venueB, ok := model.ResolveVenue(b)
	if !ok {
		return "", "", fmt.Errorf("未知交易所: %s", b)
	}
	return venueA, venueB, nil
}

func pct(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 4, 64) + "%"
}
