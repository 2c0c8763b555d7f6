package indicator

// RSI calculates the Relative Strength Index using Wilder smoothing. The
// first value appears at index period.
func RSI(prices []float64, period int) []float64 {
	result := nanSeries(len(prices))
	if period <= 0 || len(prices) <= period {
		return result
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		gain, loss = accumulate(prices[i]-prices[i-1], gain, loss)
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		g, l := accumulate(prices[i]-prices[i-1], 0, 0)
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}
	return result
}

func accumulate(change, gain, loss float64) (float64, float64) {
	if change > 0 {
		return gain + change, loss
	}
	return gain, loss - change
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
