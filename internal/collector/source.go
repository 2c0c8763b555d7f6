package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Source fetches historical bars from a market data vendor
type Source interface {
	Name() string

	// FetchHistory returns bars for [start, end] in ascending time order.
	FetchHistory(ctx context.Context, symbol, interval string, start, end time.Time) ([]core.Bar, error)
}

// DefaultTimeout bounds a single vendor request.
const DefaultTimeout = 10 * time.Second

// GetJSON performs a GET request and decodes a JSON response body into out.
func GetJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tradesim/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Clip drops bars outside [start, end], both ends inclusive. Vendors round
// range boundaries differently so every source applies it.
func Clip(bars []core.Bar, start, end time.Time) []core.Bar {
	out := bars[:0]
	for _, b := range bars {
		if b.Time.Before(start) || b.Time.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
