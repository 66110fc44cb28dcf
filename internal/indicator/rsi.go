package indicator

import "math"

// CalculateRSI computes the Relative Strength Index. Average gain and average
// loss are exponentially weighted with alpha = 1/period (com = period-1) using
// the bias-adjusted mean, and the first period-1 values are NaN.
//
// When the average loss is zero the RSI is 100; when both averages are zero
// (a flat window) the RSI is NaN.
func CalculateRSI(prices []float64, period int) []float64 {
	rsi := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return rsi
	}

	decay := 1 - 1/float64(period)
	var gainNum, lossNum, den float64
	for i := range prices {
		var gain, loss float64
		if i > 0 {
			change := prices[i] - prices[i-1]
			if change > 0 {
				gain = change
			} else {
				loss = -change
			}
		}
		gainNum = gain + decay*gainNum
		lossNum = loss + decay*lossNum
		den = 1 + decay*den

		if i < period-1 {
			continue
		}
		avgGain := gainNum / den
		avgLoss := lossNum / den
		switch {
		case avgLoss == 0 && avgGain == 0:
			rsi[i] = math.NaN()
		case avgLoss == 0:
			rsi[i] = 100
		default:
			rs := avgGain / avgLoss
			rsi[i] = 100 - (100 / (1 + rs))
		}
	}
	return rsi
}
