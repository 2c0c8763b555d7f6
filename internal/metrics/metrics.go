package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/newthinker/tradesim/internal/core"
)

const namespace = "tradesim"

// Registry holds all Prometheus metrics. It satisfies backtest.Observer
// and is safe for concurrent use.
type Registry struct {
	*prometheus.Registry

	backtestsTotal    *prometheus.CounterVec
	backtestDuration  prometheus.Histogram
	fillsTotal        *prometheus.CounterVec
	rejectionsTotal   *prometheus.CounterVec
	haltsTotal        *prometheus.CounterVec
	computationErrors *prometheus.CounterVec
	signalsGenerated  *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
// Runtime collectors are optional since a one-shot CLI run rarely wants
// them in its textfile.
func NewRegistry(withRuntime bool) *Registry {
	reg := prometheus.NewRegistry()

	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	r := &Registry{Registry: reg}

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backtests_total",
			Help:      "Total number of backtests run",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backtest_duration_seconds",
			Help:      "Backtest duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
	r.fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Total number of simulated fills",
		},
		[]string{"symbol", "side"},
	)
	r.rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_rejections_total",
			Help:      "Total number of rejected trades",
		},
		[]string{"symbol", "reason"},
	)
	r.haltsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_halts_total",
			Help:      "Total number of circuit breaker halts",
		},
		[]string{"symbol", "scope"},
	)
	r.computationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computation_errors_total",
			Help:      "Total number of bars skipped for bad prices",
		},
		[]string{"symbol"},
	)
	r.signalsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_generated_total",
			Help:      "Total number of signals generated",
		},
		[]string{"strategy", "side"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.fillsTotal)
	reg.MustRegister(r.rejectionsTotal)
	reg.MustRegister(r.haltsTotal)
	reg.MustRegister(r.computationErrors)
	reg.MustRegister(r.signalsGenerated)

	return r
}

// ObserveRun records a backtest completion.
func (r *Registry) ObserveRun(status string, seconds float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(seconds)
}

// ObserveFill records a fill.
func (r *Registry) ObserveFill(symbol string, side core.Side) {
	r.fillsTotal.WithLabelValues(symbol, string(side)).Inc()
}

// ObserveRejection records a rejected trade.
func (r *Registry) ObserveRejection(symbol, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	r.rejectionsTotal.WithLabelValues(symbol, reason).Inc()
}

// ObserveHalt records a circuit breaker halt.
func (r *Registry) ObserveHalt(symbol, scope string) {
	r.haltsTotal.WithLabelValues(symbol, scope).Inc()
}

// ObserveComputationError records a skipped bar.
func (r *Registry) ObserveComputationError(symbol string) {
	r.computationErrors.WithLabelValues(symbol).Inc()
}

// RecordSignals counts generated signals by side.
func (r *Registry) RecordSignals(strategy string, signals []core.Signal) {
	for _, s := range signals {
		r.signalsGenerated.WithLabelValues(strategy, string(s.Side)).Inc()
	}
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Push sends all metrics to a Pushgateway under the given job name.
func (r *Registry) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics: %w", err)
	}
	return nil
}
