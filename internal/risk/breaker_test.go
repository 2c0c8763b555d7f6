package risk_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/newthinker/tradesim/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCircuitBreaker_DailyDrawdownTrips(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.05, OverallDrawdownLimit: 0.15})

	var tripped bool
	var at float64
	for _, v := range []float64{100000, 101000, 98000, 96000, 94000} {
		verdict := cb.Check(v)
		if verdict.Halt {
			tripped = true
			at = v
			assert.Equal(t, risk.ScopeDaily, verdict.Scope)
			assert.Equal(t, 101000.0, verdict.HighWaterMark)
			break
		}
	}

	require.True(t, tripped, "daily drawdown breaker should trip")
	assert.Equal(t, 94000.0, at)
}

func TestCircuitBreaker_OverallDrawdownTrips(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.5, OverallDrawdownLimit: 0.15})

	assert.False(t, cb.Check(120000).Halt)
	cb.ResetDaily()

	verdict := cb.Check(100000)
	assert.True(t, verdict.Halt)
	assert.Equal(t, risk.ScopeOverall, verdict.Scope)
	assert.InDelta(t, 20000.0/120000.0, verdict.Drawdown, 1e-12)
}

func TestCircuitBreaker_StrictBoundary(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.25, OverallDrawdownLimit: 0.5})

	assert.False(t, cb.Check(100).Halt)
	assert.False(t, cb.Check(75).Halt, "drawdown equal to the limit must not halt")
	assert.True(t, cb.Check(74.99).Halt, "drawdown above the limit must halt")
}

func TestCircuitBreaker_ResetDaily(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.05, OverallDrawdownLimit: 0.5})

	cb.Check(100)
	assert.True(t, cb.Check(90).Halt)

	cb.ResetDaily()
	daily, overall := cb.HighWaterMarks()
	assert.Zero(t, daily)
	assert.Equal(t, 100.0, overall)

	// New day seeds the daily mark at 90; overall drawdown 10% is within 50%
	assert.False(t, cb.Check(90).Halt)
	daily, _ = cb.HighWaterMarks()
	assert.Equal(t, 90.0, daily)
}

func TestCircuitBreaker_NonPositiveMarks(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.05, OverallDrawdownLimit: 0.05})

	assert.False(t, cb.Check(0).Halt)
	assert.False(t, cb.Check(-10).Halt)

	cb2 := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.05, OverallDrawdownLimit: 0.05})
	assert.False(t, cb2.Check(-100).Halt)
	assert.False(t, cb2.Check(-200).Halt)
}

func TestCircuitBreaker_LogsTrip(t *testing.T) {
	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.InfoLevel)

	cb := risk.NewCircuitBreaker(risk.Limits{DailyDrawdownLimit: 0.01, OverallDrawdownLimit: 0.5}, zap.New(core))
	cb.Check(100)
	cb.Check(50)

	out := buf.String()
	assert.True(t, strings.Contains(out, "circuit breaker tripped"), out)
	assert.Contains(t, out, `"scope":"daily"`)
}
