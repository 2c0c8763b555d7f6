package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/execution"
	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/newthinker/tradesim/internal/risk"
)

type Config struct {
	Simulator  SimulatorConfig           `mapstructure:"simulator"`
	Risk       RiskConfig                `mapstructure:"risk"`
	Data       DataConfig                `mapstructure:"data"`
	Output     OutputConfig              `mapstructure:"output"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Logging    LoggingConfig             `mapstructure:"logging"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Runner     RunnerConfig              `mapstructure:"runner"`
	Alerts     []notifier.Config         `mapstructure:"alerts"`
	AlertRules []alert.Rule              `mapstructure:"alert_rules"`
}

// SimulatorConfig holds capital, costs and sizing for every run
type SimulatorConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	Commission     float64 `mapstructure:"commission"`
	Slippage       float64 `mapstructure:"slippage"`
	RiskPerTrade   float64 `mapstructure:"risk_per_trade"`
	Sizing         string  `mapstructure:"sizing"`      // "fixed_fraction" or "risk_based"
	CashPolicy     string  `mapstructure:"cash_policy"` // "allow_negative" or "reject"
	StopLossPct    float64 `mapstructure:"stop_loss_pct"`
}

// RiskConfig holds the circuit breaker and risk-based sizing limits
type RiskConfig struct {
	Enabled                  bool    `mapstructure:"enabled"`
	MaxPortfolioRiskPerTrade float64 `mapstructure:"max_portfolio_risk_per_trade"`
	MaxPositionExposure      float64 `mapstructure:"max_position_exposure"`
	DailyDrawdownLimit       float64 `mapstructure:"daily_drawdown_limit"`
	OverallDrawdownLimit     float64 `mapstructure:"overall_drawdown_limit"`
}

type DataConfig struct {
	Source   string        `mapstructure:"source"` // "csv", "yahoo" or "binance"
	Interval string        `mapstructure:"interval"`
	Storage  StorageConfig `mapstructure:"storage"`
}

type OutputConfig struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Prefix   string         `mapstructure:"prefix"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// PostgresConfig enables the run store when DSN is set
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type StrategyConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

type LoggingConfig struct {
	Development bool     `mapstructure:"development"`
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
	PushURL  string `mapstructure:"push_url"`
	Job      string `mapstructure:"job"`
}

type RunnerConfig struct {
	Parallelism int `mapstructure:"parallelism"`
}

// envPattern matches ${VAR} placeholders inside string values
var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Load reads configuration from file on top of Defaults. A .env file next
// to the config file or in the working directory is loaded first; it never
// overrides variables already set. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, Defaults())

	// Support environment variable overrides, e.g. TRADESIM_SIMULATOR_SLIPPAGE
	v.SetEnvPrefix("tradesim")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !strings.Contains(val, "${") {
			continue
		}
		expanded, err := expandEnv(val)
		if err != nil {
			return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s: %w", key, err))
		}
		v.Set(key, expanded)
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Alert params sit inside a list, out of reach of the key walk above
	for i, a := range cfg.Alerts {
		for k, val := range a.Params {
			str, ok := val.(string)
			if !ok || !strings.Contains(str, "${") {
				continue
			}
			expanded, err := expandEnv(str)
			if err != nil {
				return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("alerts[%d].params.%s: %w", i, k, err))
			}
			a.Params[k] = expanded
		}
	}

	return cfg, nil
}

func loadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// expandEnv replaces every ${VAR}; a reference to an unset variable is an error.
func expandEnv(s string) (string, error) {
	var missing []string
	out := envPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := envPattern.FindStringSubmatch(m)[1]
		val, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
		}
		return val
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s is referenced but not set", strings.Join(missing, ", "))
	}
	return out, nil
}

// setDefaults registers scalar defaults so that environment overrides apply
// to keys absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("simulator.initial_capital", d.Simulator.InitialCapital)
	v.SetDefault("simulator.commission", d.Simulator.Commission)
	v.SetDefault("simulator.slippage", d.Simulator.Slippage)
	v.SetDefault("simulator.risk_per_trade", d.Simulator.RiskPerTrade)
	v.SetDefault("simulator.sizing", d.Simulator.Sizing)
	v.SetDefault("simulator.cash_policy", d.Simulator.CashPolicy)
	v.SetDefault("simulator.stop_loss_pct", d.Simulator.StopLossPct)
	v.SetDefault("risk.enabled", d.Risk.Enabled)
	v.SetDefault("risk.max_portfolio_risk_per_trade", d.Risk.MaxPortfolioRiskPerTrade)
	v.SetDefault("risk.max_position_exposure", d.Risk.MaxPositionExposure)
	v.SetDefault("risk.daily_drawdown_limit", d.Risk.DailyDrawdownLimit)
	v.SetDefault("risk.overall_drawdown_limit", d.Risk.OverallDrawdownLimit)
	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.interval", d.Data.Interval)
	v.SetDefault("data.storage.type", d.Data.Storage.Type)
	v.SetDefault("data.storage.path", d.Data.Storage.Path)
	v.SetDefault("output.storage.type", d.Output.Storage.Type)
	v.SetDefault("output.storage.path", d.Output.Storage.Path)
	v.SetDefault("output.prefix", d.Output.Prefix)
	v.SetDefault("output.postgres.dsn", d.Output.Postgres.DSN)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("metrics.push_url", d.Metrics.PushURL)
	v.SetDefault("metrics.job", d.Metrics.Job)
	v.SetDefault("runner.parallelism", d.Runner.Parallelism)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	limits := risk.DefaultLimits()
	return &Config{
		Simulator: SimulatorConfig{
			InitialCapital: 10000,
			Commission:     1.0,
			Slippage:       0.001,
			RiskPerTrade:   1.0,
			Sizing:         "fixed_fraction",
			CashPolicy:     string(execution.CashPolicyAllowNegative),
			StopLossPct:    0.02,
		},
		Risk: RiskConfig{
			Enabled:                  false,
			MaxPortfolioRiskPerTrade: limits.MaxPortfolioRiskPerTrade,
			MaxPositionExposure:      limits.MaxPositionExposure,
			DailyDrawdownLimit:       limits.DailyDrawdownLimit,
			OverallDrawdownLimit:     limits.OverallDrawdownLimit,
		},
		Data: DataConfig{
			Source:   "csv",
			Interval: "1d",
			Storage: StorageConfig{
				Type: "localfs",
				Path: "data/processed",
			},
		},
		Output: OutputConfig{
			Storage: StorageConfig{
				Type: "localfs",
				Path: "backtest",
			},
			Prefix: "results",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Job:     "tradesim",
		},
		Runner: RunnerConfig{
			Parallelism: 4,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	s := c.Simulator
	if !(s.InitialCapital > 0) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %v", s.InitialCapital))
	}
	if s.Commission < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission cannot be negative, got %v", s.Commission))
	}
	if s.Slippage < 0 || s.Slippage >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage must be in [0,1), got %v", s.Slippage))
	}
	if s.RiskPerTrade <= 0 || s.RiskPerTrade > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("risk_per_trade must be in (0,1], got %v", s.RiskPerTrade))
	}
	if s.StopLossPct < 0 || s.StopLossPct >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss_pct must be in [0,1), got %v", s.StopLossPct))
	}
	switch s.Sizing {
	case "fixed_fraction", "risk_based":
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown sizing %q", s.Sizing))
	}
	if !execution.CashPolicy(s.CashPolicy).Valid() {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown cash_policy %q", s.CashPolicy))
	}

	// Risk limits are read by risk-based sizing even with the breaker off
	if c.Risk.Enabled || s.Sizing == "risk_based" {
		for _, l := range []struct {
			name  string
			value float64
		}{
			{"max_portfolio_risk_per_trade", c.Risk.MaxPortfolioRiskPerTrade},
			{"max_position_exposure", c.Risk.MaxPositionExposure},
			{"daily_drawdown_limit", c.Risk.DailyDrawdownLimit},
			{"overall_drawdown_limit", c.Risk.OverallDrawdownLimit},
		} {
			if l.value <= 0 || l.value > 1 {
				return core.WrapError(core.ErrConfigInvalid,
					fmt.Errorf("risk.%s must be in (0,1], got %v", l.name, l.value))
			}
		}
	}

	switch c.Data.Source {
	case "csv", "yahoo", "binance":
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown data source %q", c.Data.Source))
	}
	if err := c.Data.Storage.validate("data.storage"); err != nil {
		return err
	}
	if err := c.Output.Storage.validate("output.storage"); err != nil {
		return err
	}

	if c.Runner.Parallelism < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("parallelism cannot be negative, got %d", c.Runner.Parallelism))
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("logging.level: %w", err))
	}
	for i, a := range c.Alerts {
		switch a.Type {
		case "webhook", "telegram":
		default:
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("alerts[%d]: unknown type %q", i, a.Type))
		}
	}
	if _, err := alert.NewEvaluator(c.AlertRules); err != nil {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("alert_rules: %w", err))
	}

	return nil
}

func (s StorageConfig) validate(key string) error {
	switch s.Type {
	case "localfs":
		if s.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s.path required for localfs", key))
		}
	case "s3":
		if s.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("%s.s3.bucket required for s3", key))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s.type must be localfs or s3, got %q", key, s.Type))
	}
	return nil
}

// Limits returns the risk limits
func (c *Config) Limits() risk.Limits {
	return risk.Limits{
		MaxPortfolioRiskPerTrade: c.Risk.MaxPortfolioRiskPerTrade,
		MaxPositionExposure:      c.Risk.MaxPositionExposure,
		DailyDrawdownLimit:       c.Risk.DailyDrawdownLimit,
		OverallDrawdownLimit:     c.Risk.OverallDrawdownLimit,
	}
}

// Execution returns the fill parameters. The optional logger receives the
// risk-based sizer's downsizing warnings.
func (c *Config) Execution(logger ...*zap.Logger) execution.Config {
	var sizer risk.Sizer = risk.FixedFractionSizer{Fraction: c.Simulator.RiskPerTrade}
	if c.Simulator.Sizing == "risk_based" {
		rb := risk.RiskBasedSizer{Limits: c.Limits()}
		if len(logger) > 0 {
			rb.Logger = logger[0]
		}
		sizer = rb
	}
	return execution.Config{
		Costs: execution.Costs{
			Commission: c.Simulator.Commission,
			Slippage:   c.Simulator.Slippage,
		},
		Sizer:       sizer,
		CashPolicy:  execution.CashPolicy(c.Simulator.CashPolicy),
		StopLossPct: c.Simulator.StopLossPct,
	}
}

// Backtest returns the simulator configuration. The circuit breaker is
// enabled only when risk.enabled is set.
func (c *Config) Backtest(logger ...*zap.Logger) backtest.SimulatorConfig {
	cfg := backtest.SimulatorConfig{
		InitialCapital: c.Simulator.InitialCapital,
		Execution:      c.Execution(logger...),
	}
	if c.Risk.Enabled {
		limits := c.Limits()
		cfg.Limits = &limits
	}
	return cfg
}
