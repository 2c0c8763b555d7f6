package risk

import (
	"go.uber.org/zap"
)

// Scope identifies which drawdown limit tripped.
type Scope string

const (
	ScopeNone    Scope = ""
	ScopeDaily   Scope = "daily"
	ScopeOverall Scope = "overall"
)

// Verdict is the outcome of a circuit breaker check.
type Verdict struct {
	// Halt is true when new trades must not be placed.
	Halt bool
	// Scope names the limit that tripped.
	Scope Scope
	// Drawdown is the drawdown that tripped the breaker, as a fraction.
	Drawdown float64
	// HighWaterMark is the peak the drawdown was measured from.
	HighWaterMark float64
}

// CircuitBreaker tracks daily and all-time high-water marks and halts
// trading once drawdown from either strictly exceeds its limit.
//
// The breaker never resets itself; the driver calls ResetDaily at each
// trading day boundary.
type CircuitBreaker struct {
	limits      Limits
	dailyHigh   float64
	hasDaily    bool
	overallHigh float64
	hasOverall  bool
	logger      *zap.Logger
}

// NewCircuitBreaker creates a CircuitBreaker with uninitialised marks.
func NewCircuitBreaker(limits Limits, logger ...*zap.Logger) *CircuitBreaker {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &CircuitBreaker{
		limits: limits,
		logger: l,
	}
}

// Check updates the high-water marks with value and reports whether trading
// must halt.
func (cb *CircuitBreaker) Check(value float64) Verdict {
	if !cb.hasDaily {
		cb.dailyHigh = value
		cb.hasDaily = true
	}
	if !cb.hasOverall {
		cb.overallHigh = value
		cb.hasOverall = true
	}
	cb.dailyHigh = max(cb.dailyHigh, value)
	cb.overallHigh = max(cb.overallHigh, value)

	if cb.dailyHigh > 0 {
		dd := (cb.dailyHigh - value) / cb.dailyHigh
		if dd > cb.limits.DailyDrawdownLimit {
			cb.logger.Error("circuit breaker tripped",
				zap.String("scope", string(ScopeDaily)),
				zap.Float64("drawdown", dd),
				zap.Float64("high_water_mark", cb.dailyHigh),
				zap.Float64("limit", cb.limits.DailyDrawdownLimit),
			)
			return Verdict{Halt: true, Scope: ScopeDaily, Drawdown: dd, HighWaterMark: cb.dailyHigh}
		}
	}

	if cb.overallHigh > 0 {
		dd := (cb.overallHigh - value) / cb.overallHigh
		if dd > cb.limits.OverallDrawdownLimit {
			cb.logger.Error("circuit breaker tripped",
				zap.String("scope", string(ScopeOverall)),
				zap.Float64("drawdown", dd),
				zap.Float64("high_water_mark", cb.overallHigh),
				zap.Float64("limit", cb.limits.OverallDrawdownLimit),
			)
			return Verdict{Halt: true, Scope: ScopeOverall, Drawdown: dd, HighWaterMark: cb.overallHigh}
		}
	}

	return Verdict{}
}

// ResetDaily clears the daily high-water mark. The next Check re-seeds it.
func (cb *CircuitBreaker) ResetDaily() {
	cb.dailyHigh = 0
	cb.hasDaily = false
	cb.logger.Info("daily risk limits reset")
}

// HighWaterMarks returns the current daily and all-time marks. Unset marks
// are reported as 0.
func (cb *CircuitBreaker) HighWaterMarks() (daily, overall float64) {
	return cb.dailyHigh, cb.overallHigh
}
