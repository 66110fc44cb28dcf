package strategy

import (
	"fmt"

	"github.com/amirphl/simple-backtester/internal/indicator"
	"github.com/amirphl/simple-backtester/internal/series"
)

// TrendEMA trades pullback continuations inside a long-term uptrend.
//
// Entry: close above the trend EMA, the fast EMA has just crossed above the
// mid EMA, RSI is inside (RSILow, RSIHigh) and ADX is above ADXMin.
// Exit: close below the exit EMA. An exit on the same bar as an entry wins.
type TrendEMA struct {
	Fast      int
	Mid       int
	Exit      int
	Trend     int
	RSIPeriod int
	RSILow    float64
	RSIHigh   float64
	ADXPeriod int
	ADXMin    float64
}

func NewTrendEMA() *TrendEMA {
	return &TrendEMA{
		Fast:      8,
		Mid:       21,
		Exit:      50,
		Trend:     200,
		RSIPeriod: 14,
		RSILow:    50,
		RSIHigh:   70,
		ADXPeriod: 14,
		ADXMin:    20,
	}
}

func (s *TrendEMA) Name() string { return TrendEMAName }

// WarmupPeriod covers the ADX, which needs two smoothing windows.
func (s *TrendEMA) WarmupPeriod() int { return max(2*s.ADXPeriod, s.RSIPeriod) }

func (s *TrendEMA) Apply(f *series.Frame) (*series.Frame, error) {
	closes := f.Closes()
	fast := indicator.CalculateEMA(closes, s.Fast)
	mid := indicator.CalculateEMA(closes, s.Mid)
	exit := indicator.CalculateEMA(closes, s.Exit)
	trend := indicator.CalculateEMA(closes, s.Trend)
	rsi := indicator.CalculateRSI(closes, s.RSIPeriod)
	adx := indicator.CalculateADX(f.Highs(), f.Lows(), closes, s.ADXPeriod)

	raw := make([]Position, len(closes))
	for i, c := range closes {
		if c < exit[i] {
			raw[i] = Sell
			continue
		}
		crossUp := i > 0 && fast[i] > mid[i] && fast[i-1] <= mid[i-1]
		if c > trend[i] && crossUp && rsi[i] > s.RSILow && rsi[i] < s.RSIHigh && adx.ADX[i] > s.ADXMin {
			raw[i] = Buy
		}
	}

	return annotate(f, []column{
		{fmt.Sprintf("EMA_%d", s.Fast), fast},
		{fmt.Sprintf("EMA_%d", s.Mid), mid},
		{fmt.Sprintf("EMA_%d", s.Exit), exit},
		{fmt.Sprintf("EMA_%d", s.Trend), trend},
		{"RSI", rsi},
		{"ADX", adx.ADX},
	}, Latch(raw))
}
