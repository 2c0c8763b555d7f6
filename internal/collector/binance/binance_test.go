package binance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/newthinker/tradesim/internal/collector"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinance_ImplementsSource(t *testing.T) {
	var _ collector.Source = (*Binance)(nil)
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"BTC", "BTCUSDT"},
		{"btc", "BTCUSDT"},
		{"BTC-USDT", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
		{"BTC_USDT", "BTCUSDT"},
		{"btcusdt", "BTCUSDT"},
		{"ETH/BTC", "ETHBTC"},
		{"BTC-BUSD", "BTCBUSD"},
		{"", ""},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, NormalizeSymbol(tc.input, "USDT"), tc.input)
	}
}

func TestParseSymbol(t *testing.T) {
	base, quote := ParseSymbol("ETHBTC")
	assert.Equal(t, "ETH", base)
	assert.Equal(t, "BTC", quote)

	base, quote = ParseSymbol("XYZ")
	assert.Equal(t, "XYZ", base)
	assert.Empty(t, quote)
}

// klineServer serves hourly klines starting at from, capped at total rows.
func klineServer(t *testing.T, from time.Time, total int, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))

		startMs, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		endMs, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var rows [][]any
		for i := 0; i < total && len(rows) < limit; i++ {
			ts := from.Add(time.Duration(i) * time.Hour).UnixMilli()
			if ts < startMs || ts > endMs {
				continue
			}
			p := strconv.Itoa(100 + i)
			rows = append(rows, []any{ts, p, p, p, p, "1.5", ts + 3599999})
		}
		_ = json.NewEncoder(w).Encode(rows)
	}))
}

func TestBinance_FetchHistoryPaginates(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var requests int32
	srv := klineServer(t, from, 1500, &requests)
	defer srv.Close()

	end := from.Add(1499 * time.Hour)
	bars, err := NewWithBaseURL(srv.URL).FetchHistory(context.Background(), "BTC/USDT", "1h", from, end)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	require.Len(t, bars, 1500)
	assert.Equal(t, "BTC/USDT", bars[0].Symbol)
	assert.Equal(t, "1h", bars[0].Interval)
	assert.Equal(t, from, bars[0].Time)
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, 1.5, bars[0].Volume)
	assert.Equal(t, end, bars[1499].Time)
	assert.NoError(t, core.ValidateBars(bars))
}

func TestBinance_FetchHistoryInvalid(t *testing.T) {
	b := New()
	now := time.Now()

	_, err := b.FetchHistory(context.Background(), "BTC/USDT", "3d", now.Add(-time.Hour), now)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = b.FetchHistory(context.Background(), "B$", "1h", now.Add(-time.Hour), now)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestParseKline(t *testing.T) {
	_, err := parseKline([]any{1.0, "1", "2"})
	assert.Error(t, err)

	_, err = parseKline([]any{1.0, "x", "2", "3", "4", "5"})
	assert.Error(t, err)

	bar, err := parseKline([]any{1704067200000.0, "1", "2", "0.5", "1.5", "10"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bar.Time)
	assert.Equal(t, 2.0, bar.High)
	assert.Equal(t, 10.0, bar.Volume)
}
