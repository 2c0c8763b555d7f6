package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/alert"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/execution"
	"github.com/newthinker/tradesim/internal/notifier"
	"github.com/newthinker/tradesim/internal/risk"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
simulator:
  initial_capital: 50000
  slippage: 0.002
  sizing: risk_based

risk:
  enabled: true
  daily_drawdown_limit: 0.03

output:
  storage:
    type: s3
    s3:
      bucket: results
      region: us-east-1

strategies:
  ema_crossover:
    enabled: true
    params:
      short_window: 12
      long_window: 26
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50000.0, cfg.Simulator.InitialCapital)
	assert.Equal(t, 0.002, cfg.Simulator.Slippage)
	assert.Equal(t, 1.0, cfg.Simulator.Commission, "absent keys keep defaults")
	assert.Equal(t, "risk_based", cfg.Simulator.Sizing)
	assert.True(t, cfg.Risk.Enabled)
	assert.Equal(t, 0.03, cfg.Risk.DailyDrawdownLimit)
	assert.Equal(t, 0.15, cfg.Risk.OverallDrawdownLimit)
	assert.Equal(t, "s3", cfg.Output.Storage.Type)
	assert.Equal(t, "results", cfg.Output.Storage.S3.Bucket)
	assert.Equal(t, "localfs", cfg.Data.Storage.Type)

	require.Contains(t, cfg.Strategies, "ema_crossover")
	assert.True(t, cfg.Strategies["ema_crossover"].Enabled)
	assert.EqualValues(t, 12, cfg.Strategies["ema_crossover"].Params["short_window"])
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_BUCKET", "archive")
	t.Setenv("TEST_REGION", "eu-west-1")
	path := writeConfig(t, `
output:
  storage:
    type: s3
    s3:
      bucket: "${TEST_BUCKET}"
      region: "${TEST_REGION}"
      prefix: "runs/${TEST_BUCKET}/daily"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "archive", cfg.Output.Storage.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Output.Storage.S3.Region)
	assert.Equal(t, "runs/archive/daily", cfg.Output.Storage.S3.Prefix)
}

func TestLoad_Alerts(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")
	path := writeConfig(t, `
alerts:
  - type: telegram
    params:
      bot_token: "${TEST_BOT_TOKEN}"
      chat_id: "42"
  - type: webhook
    params:
      url: http://localhost:9000/hook

alert_rules:
  - name: deep_drawdown
    expr: "max_drawdown < -0.2"
    severity: critical
    message: Drawdown too deep
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Alerts, 2)
	assert.Equal(t, "telegram", cfg.Alerts[0].Type)
	assert.Equal(t, "123:abc", cfg.Alerts[0].Params["bot_token"])
	assert.Equal(t, "webhook", cfg.Alerts[1].Type)
	require.Len(t, cfg.AlertRules, 1)
	assert.Equal(t, "max_drawdown < -0.2", cfg.AlertRules[0].Expr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UnsetEnvReference(t *testing.T) {
	path := writeConfig(t, `
output:
  postgres:
    dsn: "${TRADESIM_TEST_UNSET_DSN}"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigMissing))
	assert.Contains(t, err.Error(), "TRADESIM_TEST_UNSET_DSN")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRADESIM_SIMULATOR_COMMISSION", "2.5")
	t.Setenv("TRADESIM_RUNNER_PARALLELISM", "8")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Simulator.Commission)
	assert.Equal(t, 8, cfg.Runner.Parallelism)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TRADESIM_TEST_DOTENV_DSN=postgres://localhost/tradesim\n"), 0644))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  postgres:\n    dsn: \"${TRADESIM_TEST_DOTENV_DSN}\"\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("TRADESIM_TEST_DOTENV_DSN") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/tradesim", cfg.Output.Postgres.DSN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 10000.0, cfg.Simulator.InitialCapital)
	assert.Equal(t, "fixed_fraction", cfg.Simulator.Sizing)
	assert.False(t, cfg.Risk.Enabled)
	assert.Equal(t, risk.DefaultLimits(), cfg.Limits())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		target error
	}{
		{"zero capital", func(c *Config) { c.Simulator.InitialCapital = 0 }, core.ErrConfigInvalid},
		{"negative commission", func(c *Config) { c.Simulator.Commission = -1 }, core.ErrConfigInvalid},
		{"slippage of one", func(c *Config) { c.Simulator.Slippage = 1 }, core.ErrConfigInvalid},
		{"risk per trade above one", func(c *Config) { c.Simulator.RiskPerTrade = 1.5 }, core.ErrConfigInvalid},
		{"zero risk per trade", func(c *Config) { c.Simulator.RiskPerTrade = 0 }, core.ErrConfigInvalid},
		{"unknown sizing", func(c *Config) { c.Simulator.Sizing = "kelly" }, core.ErrConfigInvalid},
		{"unknown cash policy", func(c *Config) { c.Simulator.CashPolicy = "margin" }, core.ErrConfigInvalid},
		{"bad limit with breaker", func(c *Config) {
			c.Risk.Enabled = true
			c.Risk.DailyDrawdownLimit = 0
		}, core.ErrConfigInvalid},
		{"bad limit with risk sizing", func(c *Config) {
			c.Simulator.Sizing = "risk_based"
			c.Risk.MaxPositionExposure = 2
		}, core.ErrConfigInvalid},
		{"unknown source", func(c *Config) { c.Data.Source = "bloomberg" }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Output.Storage.Type = "s3" }, core.ErrConfigMissing},
		{"unknown storage", func(c *Config) { c.Data.Storage.Type = "ftp" }, core.ErrConfigInvalid},
		{"negative parallelism", func(c *Config) { c.Runner.Parallelism = -1 }, core.ErrConfigInvalid},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, core.ErrConfigInvalid},
		{"bad alert rule", func(c *Config) {
			c.AlertRules = []alert.Rule{{Name: "dd", Expr: "drawdown!"}}
		}, core.ErrConfigInvalid},
		{"unknown alert type", func(c *Config) {
			c.Alerts = []notifier.Config{{Type: "pager"}}
		}, core.ErrConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), err.Error())
		})
	}
}

func TestConfig_Validate_LimitsIgnoredWhenUnused(t *testing.T) {
	cfg := Defaults()
	cfg.Risk.DailyDrawdownLimit = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Backtest(t *testing.T) {
	cfg := Defaults()
	sim := cfg.Backtest()
	assert.Nil(t, sim.Limits)
	assert.Equal(t, risk.FixedFractionSizer{Fraction: 1}, sim.Execution.Sizer)
	assert.Equal(t, execution.CashPolicyAllowNegative, sim.Execution.CashPolicy)
	assert.NoError(t, sim.Validate())

	cfg.Risk.Enabled = true
	cfg.Simulator.Sizing = "risk_based"
	sim = cfg.Backtest()
	require.NotNil(t, sim.Limits)
	assert.Equal(t, cfg.Limits(), *sim.Limits)
	assert.Equal(t, risk.RiskBasedSizer{Limits: cfg.Limits()}, sim.Execution.Sizer)
	assert.Equal(t, 0.02, sim.Execution.StopLossPct)
}

func TestConfig_Backtest_SizerLogger(t *testing.T) {
	cfg := Defaults()
	cfg.Simulator.Sizing = "risk_based"
	logger := zap.NewExample()

	sim := cfg.Backtest(logger)
	sizer, ok := sim.Execution.Sizer.(risk.RiskBasedSizer)
	require.True(t, ok)
	assert.Same(t, logger, sizer.Logger)

	sizer, ok = cfg.Execution().Sizer.(risk.RiskBasedSizer)
	require.True(t, ok)
	assert.Nil(t, sizer.Logger)
}
