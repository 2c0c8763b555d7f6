package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
)

func TestRegistry_ImplementsObserver(t *testing.T) {
	var _ backtest.Observer = (*Registry)(nil)
}

func TestNewRegistry_Runtime(t *testing.T) {
	mfs, err := NewRegistry(true).Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs, "runtime collectors should report")

	mfs, err = NewRegistry(false).Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		assert.True(t, strings.HasPrefix(mf.GetName(), "tradesim_"), mf.GetName())
	}
}

func TestRegistry_Observe(t *testing.T) {
	reg := NewRegistry(false)

	reg.ObserveFill("AAPL", core.SideBuy)
	reg.ObserveFill("AAPL", core.SideBuy)
	reg.ObserveFill("AAPL", core.SideSell)
	reg.ObserveRejection("AAPL", "insufficient_cash")
	reg.ObserveRejection("AAPL", "")
	reg.ObserveHalt("AAPL", "daily")
	reg.ObserveComputationError("AAPL")
	reg.ObserveRun("ok", 0.2)
	reg.ObserveRun("error", 0.1)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.fillsTotal.WithLabelValues("AAPL", "BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.fillsTotal.WithLabelValues("AAPL", "SELL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.rejectionsTotal.WithLabelValues("AAPL", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.haltsTotal.WithLabelValues("AAPL", "daily")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.computationErrors.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.backtestsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(reg.backtestsTotal))
}

func TestRegistry_RecordSignals(t *testing.T) {
	reg := NewRegistry(false)
	reg.RecordSignals("ema_crossover", []core.Signal{
		{Side: core.SideBuy},
		{Side: core.SideSell},
		{Side: core.SideBuy},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.signalsGenerated.WithLabelValues("ema_crossover", "BUY")))
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry(false)
	reg.ObserveHalt("MSFT", "overall")

	path := filepath.Join(t.TempDir(), "tradesim.prom")
	require.NoError(t, reg.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tradesim_circuit_halts_total{scope="overall",symbol="MSFT"} 1`)
}

func TestRegistry_Push(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry(false)
	reg.ObserveRun("ok", 1)

	require.NoError(t, reg.Push(context.Background(), srv.URL, "tradesim_backtest"))
	assert.Equal(t, "/metrics/job/tradesim_backtest", gotPath)
	assert.Contains(t, gotBody, "tradesim_backtests_total")
}
