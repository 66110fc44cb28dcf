package indicator

import "math"

// CalculateTrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func CalculateTrueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(closes))
	for i := range closes {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// CalculateATR smooths the true range with an exponential mean, alpha = 1/period,
// seeded from the first bar's range.
func CalculateATR(highs, lows, closes []float64, period int) []float64 {
	if period <= 0 {
		return nanSlice(len(closes))
	}
	return ewm(CalculateTrueRange(highs, lows, closes), 1/float64(period))
}
