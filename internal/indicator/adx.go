package indicator

import "math"

// WilderSmooth applies Wilder's running-sum smoothing. NaN values are skipped
// while seeding; the seed is the simple mean of the first period defined values
// and every later value follows s_t = s_{t-1} - s_{t-1}/period + x_t. Series no
// longer than period stay undefined.
//
// A NaN input after seeding produces NaN for that bar and carries the previous
// state forward unchanged.
func WilderSmooth(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	seedIdx, count := -1, 0
	var sum float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		count++
		if count == period {
			seedIdx = i
			break
		}
	}
	if seedIdx < 0 {
		return out
	}
	prev := sum / float64(period)
	out[seedIdx] = prev

	for i := seedIdx + 1; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		prev = prev - prev/float64(period) + values[i]
		out[i] = prev
	}
	return out
}

// DirectionalMovement returns +DM and -DM. The first bar has no movement.
func DirectionalMovement(highs, lows []float64) (plusDM, minusDM []float64) {
	plusDM = make([]float64, len(highs))
	minusDM = make([]float64, len(highs))
	for i := 1; i < len(highs); i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	return plusDM, minusDM
}

// ADX holds the directional indicators and the average directional index.
type ADX struct {
	PlusDI  []float64
	MinusDI []float64
	DX      []float64
	ADX     []float64
}

// CalculateADX computes DI+, DI-, DX and ADX with Wilder smoothing. DX is NaN
// whenever DI+ + DI- is zero.
func CalculateADX(highs, lows, closes []float64, period int) ADX {
	n := len(closes)
	tr := WilderSmooth(CalculateTrueRange(highs, lows, closes), period)
	plusDM, minusDM := DirectionalMovement(highs, lows)
	sPlus := WilderSmooth(plusDM, period)
	sMinus := WilderSmooth(minusDM, period)

	res := ADX{
		PlusDI:  nanSlice(n),
		MinusDI: nanSlice(n),
		DX:      nanSlice(n),
	}
	for i := 0; i < n; i++ {
		if !IsDefined(tr[i]) || tr[i] == 0 {
			continue
		}
		res.PlusDI[i] = 100 * sPlus[i] / tr[i]
		res.MinusDI[i] = 100 * sMinus[i] / tr[i]
		sum := res.PlusDI[i] + res.MinusDI[i]
		if !IsDefined(sum) || sum == 0 {
			continue
		}
		res.DX[i] = 100 * math.Abs(res.PlusDI[i]-res.MinusDI[i]) / sum
	}
	res.ADX = WilderSmooth(res.DX, period)
	return res
}
