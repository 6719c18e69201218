// Package config loads the bot configuration from YAML, with credentials
// taken from the environment (and an optional .env file) so they never have
// to live in the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shiki2014/binan/internal/infrastructure/exchange"
	"github.com/shiki2014/binan/internal/usecase"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Strategy StrategyConfig `yaml:"strategy"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Storage  struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Logging struct {
		Level    string `yaml:"level"`
		TradeLog string `yaml:"trade_log"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Lists struct {
		Black []string `yaml:"black"`
		White []string `yaml:"white"`
	} `yaml:"lists"`
	DryRun bool `yaml:"dry_run"`
}

type ExchangeConfig struct {
	APIKey         string               `yaml:"api_key"`
	APISecret      string               `yaml:"api_secret"`
	Proxy          string               `yaml:"proxy"`
	RESTEndpoint   string               `yaml:"rest_endpoint"`
	WSEndpoint     string               `yaml:"ws_endpoint"`
	AgreementCode  int64                `yaml:"agreement_code"`
	AgreementPath  string               `yaml:"agreement_path"`
	RequestSpacing time.Duration        `yaml:"request_spacing"`
	Retry          exchange.RetryConfig `yaml:"retry"`
}

type StrategyConfig struct {
	Interval       string  `yaml:"interval"`
	KlineLimit     int     `yaml:"kline_limit"`
	SeedLimit      int     `yaml:"seed_limit"`
	Lookback       int     `yaml:"lookback"`
	ATRPeriod      int     `yaml:"atr_period"`
	ATRMultiplier  float64 `yaml:"atr_multiplier"`
	FastEMA        int     `yaml:"fast_ema"`
	SlowEMA        int     `yaml:"slow_ema"`
	RiskFraction   float64 `yaml:"risk_fraction"`
	Allocation     float64 `yaml:"allocation"`
	MaxDecline     float64 `yaml:"max_decline"`
	SlotDivisor    int     `yaml:"slot_divisor"`
	MaxWeight      float64 `yaml:"max_weight"`
	MinWeight      float64 `yaml:"min_weight"`
	StopBuffer     float64 `yaml:"stop_buffer"`
	ProfitLockBase float64 `yaml:"profit_lock_base"`
	ProfitLockStep float64 `yaml:"profit_lock_step"`
	RangeBars      int     `yaml:"range_bars"`
	Concurrency    int     `yaml:"concurrency"`
}

type ScheduleConfig struct {
	ScanInterval    time.Duration `yaml:"scan_interval"`
	ScanOffset      time.Duration `yaml:"scan_offset"`
	RefreshLead     time.Duration `yaml:"refresh_lead"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	// a missing .env is normal in production
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := os.Getenv("API_PROXY"); v != "" {
		c.Exchange.Proxy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v, err := strconv.ParseBool(os.Getenv("DRY_RUN")); err == nil {
		c.DryRun = v
	}
}

// Validate fills defaults for unset values and rejects impossible ones.
func (c *Config) Validate() error {
	c.setDefaults()

	s := c.Strategy
	var errs []error
	if s.SlowEMA <= s.FastEMA {
		errs = append(errs, fmt.Errorf("slow_ema (%d) must be greater than fast_ema (%d)", s.SlowEMA, s.FastEMA))
	}
	if s.KlineLimit < 2*s.Lookback+2 {
		errs = append(errs, fmt.Errorf("kline_limit (%d) must be at least 2*lookback+2 (%d)", s.KlineLimit, 2*s.Lookback+2))
	}
	if s.RiskFraction <= 0 || s.RiskFraction >= 1 {
		errs = append(errs, fmt.Errorf("risk_fraction must be in (0,1), got %v", s.RiskFraction))
	}
	if s.Allocation <= 0 || s.Allocation > 1 {
		errs = append(errs, fmt.Errorf("allocation must be in (0,1], got %v", s.Allocation))
	}
	if s.MinWeight > s.MaxWeight {
		errs = append(errs, fmt.Errorf("min_weight (%v) exceeds max_weight (%v)", s.MinWeight, s.MaxWeight))
	}
	if c.Schedule.ScanOffset >= c.Schedule.ScanInterval {
		errs = append(errs, errors.New("scan_offset must be shorter than scan_interval"))
	}
	if c.Schedule.RefreshLead >= c.Schedule.ScanInterval {
		errs = append(errs, errors.New("refresh_lead must be shorter than scan_interval"))
	}
	if !c.DryRun && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		errs = append(errs, errors.New("API_KEY and API_SECRET are required unless dry_run is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) setDefaults() {
	s := &c.Strategy
	setString(&s.Interval, "12h")
	setInt(&s.Lookback, 20)
	setInt(&s.KlineLimit, 2*s.Lookback+2)
	setInt(&s.SeedLimit, 500)
	setInt(&s.ATRPeriod, 14)
	setFloat(&s.ATRMultiplier, 2)
	setInt(&s.FastEMA, 10)
	setInt(&s.SlowEMA, 20)
	setFloat(&s.RiskFraction, 0.02)
	setFloat(&s.Allocation, 0.1)
	setFloat(&s.MaxDecline, 0.2)
	setInt(&s.SlotDivisor, 16)
	setFloat(&s.MaxWeight, 1.2)
	setFloat(&s.MinWeight, 0.8)
	setFloat(&s.StopBuffer, 0.002)
	setFloat(&s.ProfitLockBase, 1.8)
	setFloat(&s.ProfitLockStep, 0.1)
	setInt(&s.RangeBars, 10)
	setInt(&s.Concurrency, 8)

	e := &c.Exchange
	setString(&e.RESTEndpoint, exchange.BinanceFuturesURL)
	setString(&e.WSEndpoint, exchange.BinanceMarkPriceWSURL)
	if e.AgreementCode == 0 {
		e.AgreementCode = exchange.DefaultAgreementCode
	}
	setString(&e.AgreementPath, exchange.DefaultAgreementPath)
	if e.RequestSpacing == 0 {
		e.RequestSpacing = 100 * time.Millisecond
	}
	if e.Retry.MaxAttempts == 0 {
		e.Retry = exchange.DefaultRetryConfig()
	}

	sc := &c.Schedule
	if sc.ScanInterval == 0 {
		sc.ScanInterval = 12 * time.Hour
	}
	if sc.ScanOffset == 0 {
		sc.ScanOffset = 4 * time.Second
	}
	if sc.RefreshLead == 0 {
		sc.RefreshLead = time.Hour
	}
	if sc.MonitorInterval == 0 {
		sc.MonitorInterval = time.Minute
	}

	setString(&c.Storage.Path, "bot.db")
	setString(&c.Logging.Level, "info")
	setString(&c.Logging.TradeLog, "trades.log")
	setInt(&c.Server.Port, 8080)
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func setFloat(v *float64, def float64) {
	if *v <= 0 {
		*v = def
	}
}

// Binance returns the adapter settings.
func (c *Config) Binance() exchange.BinanceConfig {
	return exchange.BinanceConfig{
		APIKey:        c.Exchange.APIKey,
		APISecret:     c.Exchange.APISecret,
		BaseURL:       c.Exchange.RESTEndpoint,
		ProxyURL:      c.Exchange.Proxy,
		AgreementCode: c.Exchange.AgreementCode,
		AgreementPath: c.Exchange.AgreementPath,
	}
}

func (c *Config) Snapshot() usecase.SnapshotConfig {
	return usecase.SnapshotConfig{
		Lookback:  c.Strategy.Lookback,
		ATRPeriod: c.Strategy.ATRPeriod,
		FastEMA:   c.Strategy.FastEMA,
		SlowEMA:   c.Strategy.SlowEMA,
	}
}

func (c *Config) Sizer() usecase.SizerConfig {
	return usecase.SizerConfig{
		ATRMultiplier: c.Strategy.ATRMultiplier,
		RiskFraction:  c.Strategy.RiskFraction,
		Allocation:    c.Strategy.Allocation,
		MaxDecline:    c.Strategy.MaxDecline,
	}
}

func (c *Config) Orchestrator() usecase.OrchestratorConfig {
	return usecase.OrchestratorConfig{
		SlotDivisor: c.Strategy.SlotDivisor,
		MaxWeight:   c.Strategy.MaxWeight,
		MinWeight:   c.Strategy.MinWeight,
		StopBuffer:  c.Strategy.StopBuffer,
		Concurrency: c.Strategy.Concurrency,
		DryRun:      c.DryRun,
	}
}

func (c *Config) Refresher() usecase.RefresherConfig {
	return usecase.RefresherConfig{
		Interval:    c.Strategy.Interval,
		SeedLimit:   c.Strategy.SeedLimit,
		ATRPeriod:   c.Strategy.ATRPeriod,
		FastEMA:     c.Strategy.FastEMA,
		SlowEMA:     c.Strategy.SlowEMA,
		Concurrency: c.Strategy.Concurrency,
	}
}

func (c *Config) Scanner() usecase.ScannerConfig {
	return usecase.ScannerConfig{
		Interval:    c.Strategy.Interval,
		Limit:       c.Strategy.KlineLimit,
		Concurrency: c.Strategy.Concurrency,
	}
}

func (c *Config) Monitor() usecase.MonitorConfig {
	return usecase.MonitorConfig{
		Interval:       c.Strategy.Interval,
		ATRPeriod:      c.Strategy.ATRPeriod,
		ATRMultiplier:  c.Strategy.ATRMultiplier,
		ProfitLockBase: c.Strategy.ProfitLockBase,
		ProfitLockStep: c.Strategy.ProfitLockStep,
		RangeBars:      c.Strategy.RangeBars,
		DryRun:         c.DryRun,
	}
}
