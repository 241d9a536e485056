package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/application/usecase/monitor"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/factory"
	"fundarb/internal/infrastructure/metrics"
	"fundarb/internal/infrastructure/notify"
	"fundarb/internal/infrastructure/storage"
	"fundarb/internal/infrastructure/storage/composite"
	pgrepo "fundarb/internal/infrastructure/storage/postgres"
	redisrepo "fundarb/internal/infrastructure/storage/redis"
	sqliterepo "fundarb/internal/infrastructure/storage/sqlite"
	"fundarb/internal/infrastructure/websocket"
	"fundarb/internal/interfaces/console"
	httpapi "fundarb/internal/interfaces/http"
	"fundarb/internal/interfaces/telegram"
)

// Task 一个长期运行的后台任务
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施
	Gateways *exchange.Registry
	Journal  port.Journal
	history  storage.SignalReader
	Notifier port.Notifier
	Metrics  port.Metrics
	metrics  *metrics.Metrics
	telegram *notify.Telegram
	feeds    *websocket.FeedManager

	// 应用服务
	Cache      *service.MarketDataCache
	Refresher  *service.MarketDataRefresher
	Signals    *service.SignalService
	Execution  *service.ExecutionService
	Positions  *service.PositionService
	Risk       *service.RiskMonitor
	Volatility *service.VolatilityMonitor
	Bills      *service.BillReporter
	Board      *monitor.Service

	Sink port.Sink

	closerChain []func() error
}

// New 按依赖顺序初始化全部组件，失败时释放已创建的资源
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	gateways, err := factory.BuildGateways(sc.Config)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGatewayInitFailed, err)
	}
	sc.Gateways = gateways

	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	sc.initializeNotifiers()

	if sc.Config.Metrics.Enabled {
		sc.metrics = metrics.New()
		sc.Metrics = sc.metrics
	} else {
		sc.Metrics = port.NopMetrics{}
	}

	cfg := sc.Config
	sc.Cache = service.NewMarketDataCache(gateways, cfg.Market.RefreshTimeout.Duration)
	sc.Refresher = service.NewMarketDataRefresher(
		sc.Cache, sc.Journal, sc.Notifier, sc.Metrics,
		cfg.Market.RefreshInterval.Duration, cfg.RefreshOverrides(),
	)

	policy := domainservice.SettlementPolicy{
		Enabled:          cfg.Signal.SettlementFlip,
		BoundaryHoursUTC: cfg.Signal.BoundaryHoursUTC,
		Window:           cfg.Signal.SettlementWindow.Duration,
	}
	sc.Signals = service.NewSignalService(sc.Cache, policy, sc.Journal)
	sc.Execution = service.NewExecutionService(
		gateways, sc.Cache, sc.Signals, service.NewSymbolGuard(), sc.Notifier, sc.Metrics,
		service.ExecutionConfig{
			PriceOffsetPct: cfg.Execution.PriceOffsetPct,
			LegTimeout:     cfg.Execution.LegTimeout.Duration,
			CloseOrderType: model.OrderType(cfg.Execution.CloseOrderType),
		},
	)
	sc.Positions = service.NewPositionService(gateways, cfg.Execution.LegTimeout.Duration)
	sc.Risk = service.NewRiskMonitor(
		sc.Positions, sc.Cache, sc.Notifier, sc.Journal, sc.Metrics,
		domainservice.RiskThresholds{
			PriceDeviation:   cfg.Risk.PriceDeviation,
			MarginDeviation:  cfg.Risk.MarginDeviation,
			FundingDeviation: cfg.Risk.FundingDeviation,
		},
		cfg.Risk.Interval.Duration, cfg.Risk.AlertCooldown.Duration,
	)
	if cfg.Volatility.Enabled {
		vm, err := service.NewVolatilityMonitor(gateways, sc.Cache,
			service.NewAlertDispatcher(sc.Notifier, sc.Journal, sc.Metrics, cfg.Volatility.Cooldown.Duration),
			service.VolatilityConfig{
				Venue:       cfg.Volatility.Venue,
				Interval:    cfg.Volatility.Interval.Duration,
				Thresholds:  cfg.Volatility.Thresholds,
				Symbols:     cfg.Symbols.List,
				Concurrency: cfg.Volatility.Concurrency,
			})
		if err != nil {
			return fmt.Errorf("%w: volatility: %w", ErrGatewayInitFailed, err)
		}
		sc.Volatility = vm
	}
	if cfg.Bill.Enabled {
		sc.Bills = service.NewBillReporter(gateways, sc.Notifier, cfg.Bill.Interval.Duration, cfg.Bill.Lookback.Duration)
	}
	if cfg.Board.Enabled {
		sc.Board = monitor.NewService(monitor.ServiceDeps{
			Cache:     sc.Cache,
			Signals:   sc.Signals,
			Sink:      sc.Sink,
			Symbols:   cfg.Symbols.List,
			TopN:      cfg.Board.TopN,
			Interval:  cfg.Board.Interval.Duration,
			Threshold: cfg.Board.Threshold,
			Color:     cfg.Board.Color,
		})
	}

	if feeds := factory.NewFundingFeeds(cfg); len(feeds) > 0 {
		sc.feeds = websocket.NewFeedManager(feeds, sc.Refresher)
	}

	log.Info().
		Strs("venues", gateways.Venues()).
		Bool("board", sc.Board != nil).
		Bool("bills", sc.Bills != nil).
		Bool("volatility", sc.Volatility != nil).
		Bool("streams", sc.feeds != nil).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 观测记录，全部未启用时使用 Noop
func (sc *ServiceContext) initializeStorage() error {
	st := sc.Config.Storage
	var journals []port.Journal

	if st.SQLite.Enabled {
		repo, err := sqliterepo.New(st.SQLite.Path)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		journals = append(journals, repo)
		log.Info().Str("path", st.SQLite.Path).Msg("✓ SQLite initialized")
	}

	if st.Redis.Enabled {
		rdb := redisclient.NewClient(&redisclient.Options{
			Addr:     st.Redis.Addr,
			Password: st.Redis.Password,
			DB:       st.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			closeAll(journals)
			return fmt.Errorf("redis ping: %w", err)
		}
		journals = append(journals, redisrepo.New(rdb, st.Redis.Prefix, st.Redis.TTL.Duration, "", ""))
		log.Info().Str("addr", st.Redis.Addr).Int("db", st.Redis.DB).Msg("✓ Redis initialized")
	}

	if st.Postgres.Enabled {
		repo, err := pgrepo.New(st.Postgres.DSN)
		if err != nil {
			closeAll(journals)
			return fmt.Errorf("postgres: %w", err)
		}
		journals = append(journals, repo)
		log.Info().Msg("✓ Postgres initialized")
	}

	if len(journals) == 0 {
		sc.Journal = storage.Noop{}
		return nil
	}
	repo := composite.New(journals...)
	sc.Journal = repo
	sc.history = repo
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing journals")
		return repo.Close()
	})
	return nil
}

func closeAll(journals []port.Journal) {
	for _, j := range journals {
		_ = j.Close()
	}
}

func (sc *ServiceContext) initializeNotifiers() {
	cfg := sc.Config
	notifiers := []port.Notifier{notify.LogNotifier{}}

	if cfg.Telegram.Enabled {
		sc.telegram = notify.NewTelegram(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.ChatID)
		notifiers = append(notifiers, sc.telegram)
	}
	if cfg.Kafka.Enabled {
		k := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.App.Name)
		notifiers = append(notifiers, k)
		sc.closerChain = append(sc.closerChain, k.Close)
	}
	sc.Notifier = notify.Combine(notifiers...)
}

// Tasks 所有需要在 errgroup 中运行的后台任务
func (sc *ServiceContext) Tasks() []Task {
	cfg := sc.Config
	tasks := []Task{
		{Name: "market-refresher", Run: sc.Refresher.Run},
		{Name: "risk-monitor", Run: sc.Risk.Run},
	}
	if sc.feeds != nil {
		tasks = append(tasks, Task{Name: "funding-streams", Run: sc.feeds.Run})
	}
	if sc.Board != nil {
		tasks = append(tasks, Task{Name: "board", Run: sc.Board.Run})
	}
	if sc.Volatility != nil {
		tasks = append(tasks, Task{Name: "volatility-monitor", Run: sc.Volatility.Run})
	}
	if sc.Bills != nil {
		tasks = append(tasks, Task{Name: "bill-reporter", Run: sc.Bills.Run})
	}

	if cfg.HTTP.Enabled || cfg.Metrics.Enabled {
		deps := httpapi.Deps{}
		if cfg.HTTP.Enabled {
			deps.Executor = sc.Execution
			deps.Signals = sc.Signals
			deps.Positions = sc.Positions
			deps.History = sc.history
			if sc.Board != nil {
				deps.Board = sc.Board
			}
		}
		if sc.metrics != nil {
			deps.Metrics = sc.metrics.Handler()
		}
		srv := httpapi.NewServer(cfg.HTTP.Addr, cfg.HTTP.Token, httpapi.NewHandler(deps))
		tasks = append(tasks, Task{Name: "http", Run: srv.Run})
	}

	if sc.telegram != nil && cfg.Telegram.Commands {
		deps := telegram.Deps{
			Executor:     sc.Execution,
			Signals:      sc.Signals,
			Positions:    sc.Positions,
			BillLookback: cfg.Bill.Lookback.Duration,
		}
		if sc.Bills != nil {
			deps.Bills = sc.Bills
		}
		bot := telegram.NewBot(sc.telegram, deps, 30*time.Second)
		bot.SetRetryDelay(cfg.Telegram.PollInterval.Duration)
		tasks = append(tasks, Task{Name: "telegram-bot", Run: bot.Run})
	}
	return tasks
}

// Close 逆序关闭所有资源
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
