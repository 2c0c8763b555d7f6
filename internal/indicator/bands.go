package indicator

import "math"

// StdDev calculates a rolling standard deviation. ddof is 0 for the
// population estimator and 1 for the sample estimator.
func StdDev(prices []float64, period, ddof int) []float64 {
	result := nanSeries(len(prices))
	if period <= ddof || len(prices) < period {
		return result
	}
	for i := period - 1; i < len(prices); i++ {
		window := prices[i-period+1 : i+1]
		var sum float64
		for _, p := range window {
			sum += p
		}
		mean := sum / float64(period)
		var sq float64
		for _, p := range window {
			sq += (p - mean) * (p - mean)
		}
		result[i] = math.Sqrt(sq / float64(period-ddof))
	}
	return result
}

// Bands holds Bollinger band series aligned with the input prices
type Bands struct {
	Lower  []float64
	Middle []float64
	Upper  []float64
}

// Bollinger calculates bands k population standard deviations around the SMA.
func Bollinger(prices []float64, period int, k float64) Bands {
	mid := SMA(prices, period)
	sd := StdDev(prices, period, 0)
	b := Bands{
		Lower:  nanSeries(len(prices)),
		Middle: mid,
		Upper:  nanSeries(len(prices)),
	}
	for i := range prices {
		if math.IsNaN(mid[i]) || math.IsNaN(sd[i]) {
			continue
		}
		b.Lower[i] = mid[i] - k*sd[i]
		b.Upper[i] = mid[i] + k*sd[i]
	}
	return b
}

// ZScore calculates (price - SMA) / sample standard deviation. Flat windows
// yield NaN.
func ZScore(prices []float64, period int) []float64 {
	mid := SMA(prices, period)
	sd := StdDev(prices, period, 1)
	result := nanSeries(len(prices))
	for i := range prices {
		if math.IsNaN(mid[i]) || math.IsNaN(sd[i]) || sd[i] == 0 {
			continue
		}
		result[i] = (prices[i] - mid[i]) / sd[i]
	}
	return result
}
