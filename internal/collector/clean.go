package collector

import (
	"math"
	"sort"

	"github.com/newthinker/tradesim/internal/core"
)

// CleanOptions tune bar cleaning
type CleanOptions struct {
	// PriceChangeThreshold flags a close-to-close move above this fraction
	// as an outlier. Zero disables the check.
	PriceChangeThreshold float64
	// VolumeSpikeThreshold caps volume at this multiple of its rolling mean.
	// Zero disables the check.
	VolumeSpikeThreshold float64
	// MaxFill is the number of consecutive missing prices carried forward
	// before a bar is dropped.
	MaxFill int
}

// DefaultCleanOptions returns the thresholds used by the fetch command
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		PriceChangeThreshold: 0.5,
		VolumeSpikeThreshold: 10,
		MaxFill:              2,
	}
}

// Quality reports what Clean changed
type Quality struct {
	InitialRows       int `json:"initial_rows"`
	Duplicates        int `json:"duplicates_removed"`
	Filled            int `json:"missing_values_filled"`
	InvalidRows       int `json:"invalid_rows_removed"`
	OutliersCorrected int `json:"outliers_corrected"`
	FinalRows         int `json:"final_rows"`
}

const volumeWindow = 20

// Clean sorts bars by time, drops duplicate timestamps, carries missing
// prices forward, removes rows that fail Bar.Validate and then corrects
// price and volume outliers. The input slice is not modified.
func Clean(bars []core.Bar, opts CleanOptions) ([]core.Bar, Quality) {
	q := Quality{InitialRows: len(bars)}
	if len(bars) == 0 {
		return nil, q
	}

	out := make([]core.Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })

	// keep the last bar per timestamp
	deduped := out[:0]
	for i, b := range out {
		if i+1 < len(out) && out[i+1].Time.Equal(b.Time) {
			q.Duplicates++
			continue
		}
		deduped = append(deduped, b)
	}
	out = deduped

	q.Filled = fillForward(out, opts.MaxFill)

	valid := out[:0]
	for _, b := range out {
		if b.Validate() != nil {
			q.InvalidRows++
			continue
		}
		valid = append(valid, b)
	}
	out = valid

	if len(out) >= 5 {
		q.OutliersCorrected += correctPrices(out, opts.PriceChangeThreshold)
		q.OutliersCorrected += capVolume(out, opts.VolumeSpikeThreshold)
	}

	q.FinalRows = len(out)
	return out, q
}

// fillForward replaces NaN prices with the previous bar's value for at most
// limit consecutive bars. NaN volume becomes zero.
func fillForward(bars []core.Bar, limit int) int {
	filled := 0
	run := 0
	for i := range bars {
		b := &bars[i]
		if math.IsNaN(b.Volume) {
			b.Volume = 0
			filled++
		}
		prices := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
		missing := false
		for _, p := range prices {
			if math.IsNaN(*p) {
				missing = true
			}
		}
		if !missing {
			run = 0
			continue
		}
		run++
		if i == 0 || run > limit {
			continue
		}
		prev := bars[i-1]
		for j, p := range prices {
			if math.IsNaN(*p) {
				*p = []float64{prev.Open, prev.High, prev.Low, prev.Close}[j]
				filled++
			}
		}
	}
	return filled
}

// correctPrices replaces the prices of a bar whose close jumped more than
// threshold from the previous bar with the previous bar's prices.
func correctPrices(bars []core.Bar, threshold float64) int {
	if threshold <= 0 {
		return 0
	}
	corrected := 0
	prevClose := bars[0].Close
	for i := 1; i < len(bars); i++ {
		b := &bars[i]
		change := math.Abs(b.Close/prevClose - 1)
		prevClose = b.Close
		if change <= threshold {
			continue
		}
		p := bars[i-1]
		b.Open, b.High, b.Low, b.Close = p.Open, p.High, p.Low, p.Close
		corrected++
	}
	return corrected
}

// capVolume limits volume to threshold times its trailing mean, computed
// over up to volumeWindow bars once three samples are available.
func capVolume(bars []core.Bar, threshold float64) int {
	if threshold <= 0 {
		return 0
	}
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}

	capped := 0
	var sum float64
	for i := range bars {
		sum += vols[i]
		if i >= volumeWindow {
			sum -= vols[i-volumeWindow]
		}
		n := min(i+1, volumeWindow)
		if n < 3 {
			continue
		}
		mean := sum / float64(n)
		if mean > 0 && vols[i] > mean*threshold {
			bars[i].Volume = mean * threshold
			capped++
		}
	}
	return capped
}
