package alert

import (
	"fmt"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/notifier"
)

// Evaluator checks run results against a fixed rule set.
type Evaluator struct {
	rules []Rule
}

// NewEvaluator validates rules and returns an evaluator for them.
func NewEvaluator(rules []Rule) (*Evaluator, error) {
	seen := make(map[string]bool, len(rules))
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return nil, err
		}
		if seen[rules[i].Name] {
			return nil, fmt.Errorf("duplicate rule %s", rules[i].Name)
		}
		seen[rules[i].Name] = true
	}
	return &Evaluator{rules: rules}, nil
}

// Len returns the number of rules.
func (e *Evaluator) Len() int { return len(e.rules) }

// Check returns one alert per rule the result's metrics trigger. The alert
// is stamped with the time of the last record.
func (e *Evaluator) Check(res *backtest.Result) []notifier.Alert {
	if res == nil {
		return nil
	}
	metrics := res.Analysis.Metrics.AsMap()

	var alerts []notifier.Alert
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Evaluate(metrics) {
			continue
		}
		a := notifier.Alert{
			Kind:    notifier.KindRule,
			Symbol:  res.Job.Symbol,
			Message: fmt.Sprintf("%s on %s %s", rule.FormatMessage(metrics), res.Job.Strategy, res.Job.Interval),
		}
		if res.Run != nil && len(res.Run.Records) > 0 {
			last := res.Run.Records[len(res.Run.Records)-1]
			a.Time = last.Time
			a.Price = last.Price
		}
		alerts = append(alerts, a)
	}
	return alerts
}

// CheckAll checks every successful result of a batch.
func (e *Evaluator) CheckAll(results []backtest.BatchResult) []notifier.Alert {
	var alerts []notifier.Alert
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		alerts = append(alerts, e.Check(r.Result)...)
	}
	return alerts
}
