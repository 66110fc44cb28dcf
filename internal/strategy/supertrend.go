package strategy

import (
	"github.com/amirphl/simple-backtester/internal/indicator"
	"github.com/amirphl/simple-backtester/internal/series"
)

// Supertrend goes long when the trend flips up and flat when it flips down.
// The trend starts up, so the first entry needs a down-then-up flip.
type Supertrend struct {
	Period     int
	Multiplier float64
}

func NewSupertrend() *Supertrend {
	return &Supertrend{Period: 10, Multiplier: 3}
}

func (s *Supertrend) Name() string { return SupertrendName }

func (s *Supertrend) WarmupPeriod() int { return s.Period }

func (s *Supertrend) Apply(f *series.Frame) (*series.Frame, error) {
	st := indicator.CalculateSupertrend(f.Highs(), f.Lows(), f.Closes(), s.Period, s.Multiplier)

	raw := make([]Position, len(st.Trend))
	for i := 1; i < len(st.Trend); i++ {
		prev, cur := st.Trend[i-1], st.Trend[i]
		switch {
		case cur == indicator.TrendUp && prev == indicator.TrendDown:
			raw[i] = Buy
		case cur == indicator.TrendDown && prev == indicator.TrendUp:
			raw[i] = Sell
		}
	}

	return annotate(f, []column{
		{"ATR", st.ATR},
		{"Supertrend", st.Line},
		{"Trend_Dir", st.TrendFloats()},
	}, Latch(raw))
}
