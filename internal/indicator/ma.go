// Package indicator computes technical indicator series aligned 1:1 with the
// input values. Bars before an indicator's warm-up is satisfied hold NaN, and
// every comparison against NaN is false, so undefined values never trigger a
// signal. Inputs are never modified.
package indicator

import "math"

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// IsDefined reports whether v holds a computed value.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CalculateSMA returns the trailing simple moving average over period values.
func CalculateSMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// CalculateRollingStd returns the trailing sample standard deviation (n-1
// denominator) over period values.
func CalculateRollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 1 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		var mean float64
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		var ss float64
		for _, v := range window {
			ss += (v - mean) * (v - mean)
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out
}

// CalculateEMA returns the exponential moving average with alpha = 2/(span+1),
// seeded from the first value. It has no warm-up window.
func CalculateEMA(values []float64, span int) []float64 {
	if span <= 0 {
		return nanSlice(len(values))
	}
	return ewm(values, 2/(float64(span)+1))
}

// ewm is the recursive exponential mean e_t = alpha*x_t + (1-alpha)*e_{t-1}.
func ewm(values []float64, alpha float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

// Bollinger holds the middle, upper and lower bands and the rolling deviation.
type Bollinger struct {
	Middle []float64
	Upper  []float64
	Lower  []float64
	StdDev []float64
}

// CalculateBollinger returns SMA(period) +/- k standard deviations.
func CalculateBollinger(values []float64, period int, k float64) Bollinger {
	mid := CalculateSMA(values, period)
	std := CalculateRollingStd(values, period)
	upper := make([]float64, len(values))
	lower := make([]float64, len(values))
	for i := range values {
		upper[i] = mid[i] + k*std[i]
		lower[i] = mid[i] - k*std[i]
	}
	return Bollinger{Middle: mid, Upper: upper, Lower: lower, StdDev: std}
}
