package alert

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/notifier"
)

var end = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func result(symbol string, m backtest.Metrics) *backtest.Result {
	return &backtest.Result{
		Job: backtest.Job{Strategy: "ema_crossover", Symbol: symbol, Interval: "1d"},
		Run: &backtest.Run{
			Symbol:  symbol,
			Records: []backtest.Record{{Time: end, Price: 101.5, Total: 9000}},
		},
		Analysis: backtest.Analysis{Metrics: m},
	}
}

func TestNewEvaluator_Validation(t *testing.T) {
	if _, err := NewEvaluator([]Rule{{Name: "dd", Expr: "max_drawdown < -0.2"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewEvaluator([]Rule{{Name: "bad", Expr: "drawdown is big"}}); err == nil {
		t.Error("expected error for unparseable expression")
	}
	if _, err := NewEvaluator([]Rule{{Expr: "num_trades == 0"}}); err == nil {
		t.Error("expected error for missing name")
	}
	dup := []Rule{
		{Name: "dd", Expr: "max_drawdown < -0.2"},
		{Name: "dd", Expr: "max_drawdown < -0.3"},
	}
	if _, err := NewEvaluator(dup); err == nil {
		t.Error("expected error for duplicate rule")
	}
}

func TestEvaluator_Check(t *testing.T) {
	eval, err := NewEvaluator([]Rule{
		{Name: "deep_drawdown", Expr: "max_drawdown < -0.2", Severity: "critical", Message: "Drawdown too deep"},
		{Name: "idle", Expr: "num_trades == 0", Severity: "warning", Message: "No trades"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	alerts := eval.Check(result("AAPL", backtest.Metrics{MaxDrawdown: -0.25, NumTrades: 3}))
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Kind != notifier.KindRule || a.Symbol != "AAPL" {
		t.Errorf("unexpected alert %+v", a)
	}
	if !a.Time.Equal(end) || a.Price != 101.5 {
		t.Errorf("alert should carry the last record, got %v %v", a.Time, a.Price)
	}
	if !strings.Contains(a.Message, "[CRITICAL] deep_drawdown") || !strings.Contains(a.Message, "max_drawdown=-0.2500") {
		t.Errorf("unexpected message %q", a.Message)
	}
	if !strings.Contains(a.Message, "ema_crossover 1d") {
		t.Errorf("message should name the job, got %q", a.Message)
	}

	alerts = eval.Check(result("MSFT", backtest.Metrics{MaxDrawdown: -0.3}))
	if len(alerts) != 2 {
		t.Errorf("expected both rules to fire, got %d", len(alerts))
	}

	if alerts := eval.Check(nil); alerts != nil {
		t.Errorf("nil result should yield no alerts, got %v", alerts)
	}
}

func TestEvaluator_CheckAll(t *testing.T) {
	eval, err := NewEvaluator([]Rule{{Name: "loss", Expr: "total_return < 0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := []backtest.BatchResult{
		{Result: result("AAPL", backtest.Metrics{TotalReturn: -0.1})},
		{Result: result("MSFT", backtest.Metrics{TotalReturn: 0.2})},
		{Err: errors.New("no data")},
	}
	alerts := eval.CheckAll(results)
	if len(alerts) != 1 || alerts[0].Symbol != "AAPL" {
		t.Errorf("expected one AAPL alert, got %+v", alerts)
	}
}

func TestRule_Evaluate(t *testing.T) {
	tests := []struct {
		expr     string
		metrics  map[string]float64
		expected bool
	}{
		{"sharpe_ratio > 1.5", map[string]float64{"sharpe_ratio": 2}, true},
		{"sharpe_ratio > 1.5", map[string]float64{"sharpe_ratio": 1}, false},
		{"num_trades == 0", map[string]float64{"num_trades": 0}, true},
		{"num_trades == 0", map[string]float64{"num_trades": 1}, false},
		{"num_trades >= 10", map[string]float64{"num_trades": 10}, true},
		{"num_trades >= 10", map[string]float64{"num_trades": 9}, false},
		{"max_drawdown <= -0.1", map[string]float64{"max_drawdown": -0.2}, true},
		{"max_drawdown <= -0.1", map[string]float64{"max_drawdown": -0.05}, false},
		{"calmar_ratio != 0", map[string]float64{"calmar_ratio": 0.5}, true},
		{"calmar_ratio != 0", map[string]float64{"calmar_ratio": 0}, false},
		{"missing > 0", map[string]float64{}, false},
		{"not an expression", map[string]float64{"not": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			rule := Rule{Expr: tt.expr}
			result := rule.Evaluate(tt.metrics)
			if result != tt.expected {
				t.Errorf("expr %q with metrics %v: expected %v, got %v",
					tt.expr, tt.metrics, tt.expected, result)
			}
		})
	}
}

func TestRule_FormatMessage(t *testing.T) {
	rule := Rule{
		Name:     "weak_sharpe",
		Expr:     "sharpe_ratio < 0.5",
		Severity: "warning",
		Message:  "Risk-adjusted return is weak",
	}

	msg := rule.FormatMessage(map[string]float64{})
	if msg != "[WARNING] weak_sharpe: Risk-adjusted return is weak" {
		t.Errorf("unexpected message: %s", msg)
	}

	msg = rule.FormatMessage(map[string]float64{"sharpe_ratio": 0.25})
	if msg != "[WARNING] weak_sharpe: Risk-adjusted return is weak (sharpe_ratio=0.2500)" {
		t.Errorf("unexpected message: %s", msg)
	}
}
