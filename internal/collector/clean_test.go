package collector

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanBar(day int, close, volume float64) core.Bar {
	return core.Bar{
		Symbol: "AAPL",
		Time:   time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Open:   close,
		High:   close,
		Low:    close,
		Close:  close,
		Volume: volume,
	}
}

func closes(bars []core.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func TestClean_SortsAndDedupes(t *testing.T) {
	in := []core.Bar{cleanBar(3, 103, 1), cleanBar(1, 101, 1), cleanBar(2, 102, 1), cleanBar(2, 202, 1)}

	out, q := Clean(in, CleanOptions{})
	assert.Equal(t, []float64{101, 202, 103}, closes(out))
	assert.Equal(t, 1, q.Duplicates)
	assert.Equal(t, 4, q.InitialRows)
	assert.Equal(t, 3, q.FinalRows)
	assert.Equal(t, 103.0, in[0].Close, "input must not be modified")
}

func TestClean_FillsAndDrops(t *testing.T) {
	nan := math.NaN()
	in := []core.Bar{
		cleanBar(1, 100, 1),
		cleanBar(2, nan, nan),
		cleanBar(3, nan, 1),
		cleanBar(4, nan, 1),
		cleanBar(5, 105, 1),
		cleanBar(6, -1, 1),
	}

	out, q := Clean(in, CleanOptions{MaxFill: 2})
	assert.Equal(t, []float64{100, 100, 100, 105}, closes(out))
	assert.Equal(t, 0.0, out[1].Volume)
	// two bars of four prices each plus one volume
	assert.Equal(t, 9, q.Filled)
	// day 4 exceeds the fill limit, day 6 has a negative price
	assert.Equal(t, 2, q.InvalidRows)
}

func TestClean_CorrectsOutliers(t *testing.T) {
	in := []core.Bar{
		cleanBar(1, 100, 10),
		cleanBar(2, 101, 10),
		cleanBar(3, 102, 10),
		cleanBar(4, 300, 10),
		cleanBar(5, 103, 10),
		cleanBar(6, 104, 10),
	}

	out, q := Clean(in, DefaultCleanOptions())
	// the jump and the fall back are both beyond 50%
	assert.Equal(t, []float64{100, 101, 102, 102, 102, 104}, closes(out))
	assert.Equal(t, 2, q.OutliersCorrected)
}

func TestClean_CapsVolumeSpike(t *testing.T) {
	var in []core.Bar
	for d := 1; d <= 14; d++ {
		in = append(in, cleanBar(d, 100, 10))
	}
	in = append(in, cleanBar(15, 100, 1000))

	out, q := Clean(in, DefaultCleanOptions())
	mean := (14*10.0 + 1000) / 15
	assert.InDelta(t, mean*10, out[14].Volume, 1e-9)
	assert.Equal(t, 1, q.OutliersCorrected)
}

func TestClean_SkipsOutliersOnShortSeries(t *testing.T) {
	in := []core.Bar{cleanBar(1, 100, 1), cleanBar(2, 300, 1)}

	out, q := Clean(in, DefaultCleanOptions())
	assert.Equal(t, []float64{100, 300}, closes(out))
	assert.Zero(t, q.OutliersCorrected)
}

func TestClean_Empty(t *testing.T) {
	out, q := Clean(nil, DefaultCleanOptions())
	require.Empty(t, out)
	assert.Zero(t, q.FinalRows)
}
