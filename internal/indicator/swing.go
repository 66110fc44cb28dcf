package indicator

// Swings is the raw result of centered fractal detection. A bar is a swing
// high (low) when its high (low) equals the max (min) of the window centered on
// it. The centered window looks Lag bars into the future, so the fact recorded
// at index p may only be consumed from index p+Lag on; use ConfirmedHigh and
// ConfirmedLow when walking a series bar by bar.
type Swings struct {
	WindowHigh []float64
	WindowLow  []float64
	IsHigh     []bool
	IsLow      []bool
	Lag        int
}

// DetectSwings runs the raw centered pass. window must be odd; bars closer than
// window/2 to either edge are never swings.
func DetectSwings(highs, lows []float64, window int) Swings {
	n := len(highs)
	if window < 1 {
		window = 1
	}
	if window%2 == 0 {
		window++
	}
	half := window / 2
	sw := Swings{
		WindowHigh: nanSlice(n),
		WindowLow:  nanSlice(n),
		IsHigh:     make([]bool, n),
		IsLow:      make([]bool, n),
		Lag:        half,
	}
	for i := half; i+half < n; i++ {
		hi, lo := highs[i-half], lows[i-half]
		for j := i - half + 1; j <= i+half; j++ {
			if highs[j] > hi {
				hi = highs[j]
			}
			if lows[j] < lo {
				lo = lows[j]
			}
		}
		sw.WindowHigh[i] = hi
		sw.WindowLow[i] = lo
		sw.IsHigh[i] = highs[i] == hi
		sw.IsLow[i] = lows[i] == lo
	}
	return sw
}

// ConfirmedHigh reports the swing high that becomes known at bar i, which is
// the bar Lag positions earlier.
func (s Swings) ConfirmedHigh(i int) (int, bool) {
	p := i - s.Lag
	if p < 0 || p >= len(s.IsHigh) || i >= len(s.IsHigh) {
		return 0, false
	}
	return p, s.IsHigh[p]
}

// ConfirmedLow reports the swing low that becomes known at bar i.
func (s Swings) ConfirmedLow(i int) (int, bool) {
	p := i - s.Lag
	if p < 0 || p >= len(s.IsLow) || i >= len(s.IsLow) {
		return 0, false
	}
	return p, s.IsLow[p]
}

// BoolFloats converts a flag column to 0/1 floats.
func BoolFloats(flags []bool) []float64 {
	out := make([]float64, len(flags))
	for i, f := range flags {
		if f {
			out[i] = 1
		}
	}
	return out
}
