package indicator

// Trend direction of the Supertrend.
const (
	TrendUp   = 1
	TrendDown = -1
)

// Supertrend holds the ATR, the basic and final bands, the trailing line and
// the trend direction per bar.
type Supertrend struct {
	ATR        []float64
	BasicUpper []float64
	BasicLower []float64
	FinalUpper []float64
	FinalLower []float64
	Line       []float64
	Trend      []int
}

// CalculateSupertrend computes the Supertrend bands from (high+low)/2 +/-
// multiplier*ATR(period).
//
// Final bands only move toward price: the upper band may fall but not rise
// unless the previous close broke above it, and the lower band may rise but
// not fall unless the previous close broke below it. The trend starts up and
// only flips when the close crosses the band guarding the current regime.
func CalculateSupertrend(highs, lows, closes []float64, period int, multiplier float64) Supertrend {
	n := len(closes)
	st := Supertrend{
		ATR:        CalculateATR(highs, lows, closes, period),
		BasicUpper: make([]float64, n),
		BasicLower: make([]float64, n),
		FinalUpper: make([]float64, n),
		FinalLower: make([]float64, n),
		Line:       nanSlice(n),
		Trend:      make([]int, n),
	}
	if n == 0 {
		return st
	}

	for i := 0; i < n; i++ {
		hl2 := (highs[i] + lows[i]) / 2
		st.BasicUpper[i] = hl2 + multiplier*st.ATR[i]
		st.BasicLower[i] = hl2 - multiplier*st.ATR[i]
	}

	st.FinalUpper[0] = st.BasicUpper[0]
	st.FinalLower[0] = st.BasicLower[0]
	st.Trend[0] = TrendUp

	for i := 1; i < n; i++ {
		prevUpper, prevLower := st.FinalUpper[i-1], st.FinalLower[i-1]
		prevClose := closes[i-1]

		if st.BasicUpper[i] < prevUpper || prevClose > prevUpper {
			st.FinalUpper[i] = st.BasicUpper[i]
		} else {
			st.FinalUpper[i] = prevUpper
		}
		if st.BasicLower[i] > prevLower || prevClose < prevLower {
			st.FinalLower[i] = st.BasicLower[i]
		} else {
			st.FinalLower[i] = prevLower
		}

		trend := st.Trend[i-1]
		switch trend {
		case TrendUp:
			if closes[i] < st.FinalLower[i] {
				trend = TrendDown
			}
		default:
			if closes[i] > st.FinalUpper[i] {
				trend = TrendUp
			}
		}
		st.Trend[i] = trend

		if trend == TrendUp {
			st.Line[i] = st.FinalLower[i]
		} else {
			st.Line[i] = st.FinalUpper[i]
		}
	}
	return st
}

// TrendFloats converts the trend direction to a float column.
func (s Supertrend) TrendFloats() []float64 {
	out := make([]float64, len(s.Trend))
	for i, d := range s.Trend {
		out[i] = float64(d)
	}
	return out
}
