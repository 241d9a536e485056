package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration 支持 "30s" / "5m" 形式的 TOML 字段
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	App struct {
		Name string `toml:"name"`
	} `toml:"app"`

	Log LogConfig `toml:"log"`

	Symbols struct {
		List []string `toml:"list"` // 看板过滤，为空表示全部
	} `toml:"symbols"`

	Market struct {
		RefreshInterval Duration `toml:"refresh_interval"`
		RefreshTimeout  Duration `toml:"refresh_timeout"`
	} `toml:"market"`

	Signal struct {
		SettlementFlip   bool     `toml:"settlement_flip"`
		BoundaryHoursUTC []int    `toml:"boundary_hours_utc"`
		SettlementWindow Duration `toml:"settlement_window"`
	} `toml:"signal"`

	Execution struct {
		PriceOffsetPct float64  `toml:"price_offset_pct"`
		LegTimeout     Duration `toml:"leg_timeout"`
		CloseOrderType string   `toml:"close_order_type"`
	} `toml:"execution"`

	Risk struct {
		Interval         Duration `toml:"interval"`
		AlertCooldown    Duration `toml:"alert_cooldown"`
		PriceDeviation   float64  `toml:"price_deviation"`
		MarginDeviation  float64  `toml:"margin_deviation"`
		FundingDeviation float64  `toml:"funding_deviation"`
	} `toml:"risk"`

	Volatility struct {
		Enabled     bool               `toml:"enabled"`
		Venue       string             `toml:"venue"`
		Interval    Duration           `toml:"interval"`
		Cooldown    Duration           `toml:"cooldown"`
		Thresholds  map[string]float64 `toml:"thresholds"` // K 线周期 -> 涨跌幅，0.1 = 10%
		Concurrency int                `toml:"concurrency"`
	} `toml:"volatility"`

	Bill struct {
		Enabled  bool     `toml:"enabled"`
		Interval Duration `toml:"interval"`
		Lookback Duration `toml:"lookback"`
	} `toml:"bill"`

	Board struct {
		Enabled   bool     `toml:"enabled"`
		Interval  Duration `toml:"interval"`
		TopN      int      `toml:"top_n"`
		Threshold float64  `toml:"threshold"`
		Color     bool     `toml:"color"`
	} `toml:"board"`

	Exchanges map[string]ExchangeConfig `toml:"exchanges"`

	Telegram struct {
		Enabled      bool     `toml:"enabled"`
		Token        string   `toml:"token"`
		ChatID       int64    `toml:"chat_id"`
		APIURL       string   `toml:"api_url"`
		Commands     bool     `toml:"commands"` // 开启 /open /close 等指令
		PollInterval Duration `toml:"poll_interval"`
	} `toml:"telegram"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		Token   string `toml:"token"` // 非空时要求 Authorization: Bearer
	} `toml:"http"`

	Metrics struct {
		Enabled bool `toml:"enabled"`
	} `toml:"metrics"`

	Storage StorageConfig `toml:"storage"`

	Kafka struct {
		Enabled bool     `toml:"enabled"`
		Brokers []string `toml:"brokers"`
		Topic   string   `toml:"topic"`
	} `toml:"kafka"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"` // 为空只输出到终端
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type ExchangeConfig struct {
	Enabled         bool     `toml:"enabled"`
	APIKey          string   `toml:"api_key"`
	APISecret       string   `toml:"api_secret"`
	Passphrase      string   `toml:"passphrase"`
	RestURL         string   `toml:"rest_url"`
	WsURL           string   `toml:"ws_url"` // 资金费率推送，为空不订阅
	RateLimit       float64  `toml:"rate_limit"`
	Burst           int      `toml:"burst"`
	RefreshInterval Duration `toml:"refresh_interval"` // 覆盖 market.refresh_interval
}

type StorageConfig struct {
	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Redis struct {
		Enabled  bool     `toml:"enabled"`
		Addr     string   `toml:"addr"`
		Password string   `toml:"password"`
		DB       int      `toml:"db"`
		Prefix   string   `toml:"prefix"`
		TTL      Duration `toml:"ttl"`
	} `toml:"redis"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`
}

var defaultRestURLs = map[string]string{
	"binance": "https://fapi.binance.com",
	"okx":     "https://www.okx.com",
	"bitget":  "https://api.bitget.com",
	"bybit":   "https://api.bybit.com",
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	normalizeExchanges(&cfg)
	expandEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalizeExchanges 交易所名统一小写
func normalizeExchanges(cfg *Config) {
	normalized := make(map[string]ExchangeConfig, len(cfg.Exchanges))
	for name, ex := range cfg.Exchanges {
		normalized[strings.ToLower(strings.TrimSpace(name))] = ex
	}
	cfg.Exchanges = normalized
}

// expandEnv 展开 ${VAR} 占位符，凭证不落在配置文件里
func expandEnv(cfg *Config) {
	for name, ex := range cfg.Exchanges {
		ex.APIKey = os.ExpandEnv(ex.APIKey)
		ex.APISecret = os.ExpandEnv(ex.APISecret)
		ex.Passphrase = os.ExpandEnv(ex.Passphrase)
		cfg.Exchanges[name] = ex
	}
	cfg.Telegram.Token = os.ExpandEnv(cfg.Telegram.Token)
	cfg.HTTP.Token = os.ExpandEnv(cfg.HTTP.Token)
	cfg.Storage.Redis.Password = os.ExpandEnv(cfg.Storage.Redis.Password)
	cfg.Storage.Postgres.DSN = os.ExpandEnv(cfg.Storage.Postgres.DSN)
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "fundarb"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Market.RefreshInterval.Duration <= 0 {
		cfg.Market.RefreshInterval.Duration = 30 * time.Second
	}
	if cfg.Market.RefreshTimeout.Duration <= 0 {
		cfg.Market.RefreshTimeout.Duration = 15 * time.Second
	}
	if len(cfg.Signal.BoundaryHoursUTC) == 0 {
		cfg.Signal.BoundaryHoursUTC = []int{0, 8, 16}
	}
	if cfg.Signal.SettlementWindow.Duration <= 0 {
		cfg.Signal.SettlementWindow.Duration = 10 * time.Minute
	}
	if cfg.Execution.PriceOffsetPct <= 0 {
		cfg.Execution.PriceOffsetPct = 0.1
	}
	if cfg.Execution.LegTimeout.Duration <= 0 {
		cfg.Execution.LegTimeout.Duration = 10 * time.Second
	}
	cfg.Execution.CloseOrderType = strings.ToUpper(strings.TrimSpace(cfg.Execution.CloseOrderType))
	if cfg.Execution.CloseOrderType == "" {
		cfg.Execution.CloseOrderType = "MARKET"
	}
	if cfg.Risk.Interval.Duration <= 0 {
		cfg.Risk.Interval.Duration = 60 * time.Second
	}
	if cfg.Risk.AlertCooldown.Duration <= 0 {
		cfg.Risk.AlertCooldown.Duration = 10 * time.Minute
	}
	if cfg.Risk.PriceDeviation <= 0 {
		cfg.Risk.PriceDeviation = 0.1
	}
	if cfg.Risk.MarginDeviation <= 0 {
		cfg.Risk.MarginDeviation = 0.2
	}
	if cfg.Risk.FundingDeviation <= 0 {
		cfg.Risk.FundingDeviation = 0.01
	}
	cfg.Volatility.Venue = strings.ToLower(strings.TrimSpace(cfg.Volatility.Venue))
	if cfg.Volatility.Venue == "" {
		cfg.Volatility.Venue = "binance"
	}
	if cfg.Volatility.Interval.Duration <= 0 {
		cfg.Volatility.Interval.Duration = time.Minute
	}
	if cfg.Volatility.Cooldown.Duration <= 0 {
		cfg.Volatility.Cooldown.Duration = 5 * time.Minute
	}
	if len(cfg.Volatility.Thresholds) == 0 {
		cfg.Volatility.Thresholds = map[string]float64{"5m": 0.10, "15m": 0.15, "1h": 0.30}
	}
	if cfg.Volatility.Concurrency <= 0 {
		cfg.Volatility.Concurrency = 5
	}
	if cfg.Bill.Interval.Duration <= 0 {
		cfg.Bill.Interval.Duration = 24 * time.Hour
	}
	if cfg.Bill.Lookback.Duration <= 0 {
		cfg.Bill.Lookback.Duration = 24 * time.Hour
	}
	if cfg.Board.Interval.Duration <= 0 {
		cfg.Board.Interval.Duration = time.Minute
	}
	if cfg.Board.TopN <= 0 {
		cfg.Board.TopN = 10
	}
	if cfg.Board.Threshold <= 0 {
		cfg.Board.Threshold = 0.0005
	}
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
	if cfg.Telegram.PollInterval.Duration <= 0 {
		cfg.Telegram.PollInterval.Duration = 2 * time.Second
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/fundarb.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "fundarb"
	}
	if cfg.Storage.Redis.TTL.Duration <= 0 {
		cfg.Storage.Redis.TTL.Duration = 24 * time.Hour
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "fundarb.events"
	}

	for name, ex := range cfg.Exchanges {
		if ex.RestURL == "" {
			ex.RestURL = defaultRestURLs[name]
		}
		if ex.RateLimit <= 0 {
			ex.RateLimit = 10
		}
		if ex.Burst <= 0 {
			ex.Burst = 5
		}
		cfg.Exchanges[name] = ex
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)

	enabled := cfg.EnabledExchanges()
	if len(enabled) < 2 {
		return errors.New("at least two exchanges must be enabled")
	}
	for _, name := range enabled {
		ex := cfg.Exchanges[name]
		if strings.TrimSpace(ex.RestURL) == "" {
			return fmt.Errorf("exchanges.%s.rest_url empty but enabled", name)
		}
	}

	switch cfg.Execution.CloseOrderType {
	case "MARKET", "LIMIT":
	default:
		return fmt.Errorf("execution.close_order_type must be MARKET or LIMIT, got %q", cfg.Execution.CloseOrderType)
	}
	for _, h := range cfg.Signal.BoundaryHoursUTC {
		if h < 0 || h > 23 {
			return fmt.Errorf("signal.boundary_hours_utc: hour %d out of range", h)
		}
	}
	if cfg.Volatility.Enabled {
		if !cfg.Exchanges[cfg.Volatility.Venue].Enabled {
			return fmt.Errorf("volatility.venue %q is not an enabled exchange", cfg.Volatility.Venue)
		}
		for w, th := range cfg.Volatility.Thresholds {
			if th <= 0 {
				return fmt.Errorf("volatility.thresholds.%s must be positive", w)
			}
		}
	}
	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0) {
		return errors.New("telegram enabled but token or chat_id missing")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return errors.New("kafka enabled but brokers empty")
	}
	if cfg.Storage.Postgres.Enabled && cfg.Storage.Postgres.DSN == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	if cfg.Storage.Redis.Enabled && cfg.Storage.Redis.Addr == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	return nil
}

// EnabledExchanges 已启用的交易所，按名称排序
func (c *Config) EnabledExchanges() []string {
	out := make([]string, 0, len(c.Exchanges))
	for name, ex := range c.Exchanges {
		if ex.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RefreshOverrides 单交易所刷新周期覆盖
func (c *Config) RefreshOverrides() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for name, ex := range c.Exchanges {
		if ex.Enabled && ex.RefreshInterval.Duration > 0 {
			out[name] = ex.RefreshInterval.Duration
		}
	}
	return out
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
