package strategy

import (
	"fmt"

	"github.com/amirphl/simple-backtester/internal/indicator"
	"github.com/amirphl/simple-backtester/internal/series"
)

// BollingerRSI is a mean-reversion strategy. It buys when the close is below
// the lower band while RSI is oversold and sells when the close is above the
// upper band while RSI is overbought. Both conditions must hold; a bar that
// raises both is a sell.
type BollingerRSI struct {
	Period     int
	StdDev     float64
	RSIPeriod  int
	Oversold   float64
	Overbought float64
}

func NewBollingerRSI() *BollingerRSI {
	return &BollingerRSI{Period: 20, StdDev: 2.0, RSIPeriod: 14, Oversold: 30, Overbought: 70}
}

func (s *BollingerRSI) Name() string { return BollingerRSIName }

func (s *BollingerRSI) WarmupPeriod() int { return max(s.Period, s.RSIPeriod) }

func (s *BollingerRSI) Apply(f *series.Frame) (*series.Frame, error) {
	closes := f.Closes()
	bb := indicator.CalculateBollinger(closes, s.Period, s.StdDev)
	rsi := indicator.CalculateRSI(closes, s.RSIPeriod)

	raw := make([]Position, len(closes))
	for i, c := range closes {
		switch {
		case c > bb.Upper[i] && rsi[i] > s.Overbought:
			raw[i] = Sell
		case c < bb.Lower[i] && rsi[i] < s.Oversold:
			raw[i] = Buy
		}
	}

	return annotate(f, []column{
		{fmt.Sprintf("SMA_%d", s.Period), bb.Middle},
		{"Std_Dev", bb.StdDev},
		{"BB_Upper", bb.Upper},
		{"BB_Lower", bb.Lower},
		{"RSI", rsi},
	}, Latch(raw))
}
