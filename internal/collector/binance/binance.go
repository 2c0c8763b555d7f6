package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/collector"
	"github.com/newthinker/tradesim/internal/core"
)

const (
	baseURL = "https://api.binance.com"

	// pageLimit is the maximum number of klines per request
	pageLimit = 1000
)

var intervals = map[string]bool{
	"1m": true, "5m": true, "15m": true, "30m": true,
	"1h": true, "2h": true, "4h": true,
	"1d": true, "1w": true,
}

// Binance fetches spot klines from the Binance public API
type Binance struct {
	client       *http.Client
	baseURL      string
	defaultQuote string
}

// New creates a new Binance source
func New() *Binance {
	return &Binance{
		client: &http.Client{
			Timeout: collector.DefaultTimeout,
		},
		baseURL:      baseURL,
		defaultQuote: "USDT",
	}
}

// NewWithBaseURL creates a Binance source with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	b := New()
	b.baseURL = strings.TrimSuffix(url, "/")
	return b
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchHistory pages through klines from start until end is covered. Bars
// keep the caller's symbol spelling, e.g. "BTC/USDT".
func (b *Binance) FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error) {
	pair := NormalizeSymbol(symbol, b.defaultQuote)
	if err := validatePair(pair); err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, err)
	}
	if !intervals[interval] {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("binance does not serve %q bars", interval))
	}

	var data []core.Bar
	since := start.UnixMilli()
	for since <= end.UnixMilli() {
		url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=%d",
			b.baseURL, pair, interval, since, end.UnixMilli(), pageLimit)

		var klines [][]any
		if err := collector.GetJSON(ctx, b.client, url, &klines); err != nil {
			return nil, fmt.Errorf("fetching klines: %w", err)
		}

		for _, k := range klines {
			bar, err := parseKline(k)
			if err != nil {
				return nil, err
			}
			bar.Symbol = symbol
			bar.Interval = interval
			data = append(data, bar)
		}
		if len(klines) < pageLimit {
			break
		}
		since = data[len(data)-1].Time.UnixMilli() + 1
	}

	return collector.Clip(data, start, end), nil
}

// parseKline reads [openTime, open, high, low, close, volume, ...]
func parseKline(k []any) (core.Bar, error) {
	if len(k) < 6 {
		return core.Bar{}, fmt.Errorf("kline has %d fields, want at least 6", len(k))
	}
	openTime, ok := k[0].(float64)
	if !ok {
		return core.Bar{}, fmt.Errorf("kline open time is %T", k[0])
	}

	var vals [5]float64
	for i := range vals {
		s, ok := k[i+1].(string)
		if !ok {
			return core.Bar{}, fmt.Errorf("kline field %d is %T", i+1, k[i+1])
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		vals[i] = v
	}

	return core.Bar{
		Time:   time.UnixMilli(int64(openTime)).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
