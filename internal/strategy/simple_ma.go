package strategy

import (
	"fmt"

	"github.com/amirphl/simple-backtester/internal/indicator"
	"github.com/amirphl/simple-backtester/internal/series"
)

// SimpleMA is the golden-cross trend filter: long while the fast SMA is above
// the slow SMA, flat otherwise. It is recomputed every bar and needs no latch.
type SimpleMA struct {
	Fast int
	Slow int
}

func NewSimpleMA() *SimpleMA {
	return &SimpleMA{Fast: 50, Slow: 200}
}

func (s *SimpleMA) Name() string { return SimpleMAName }

func (s *SimpleMA) WarmupPeriod() int { return max(s.Fast, s.Slow) }

func (s *SimpleMA) Apply(f *series.Frame) (*series.Frame, error) {
	closes := f.Closes()
	fast := indicator.CalculateSMA(closes, s.Fast)
	slow := indicator.CalculateSMA(closes, s.Slow)

	signal := make([]int, len(closes))
	for i := range closes {
		if fast[i] > slow[i] {
			signal[i] = 1
		}
	}

	return annotate(f, []column{
		{fmt.Sprintf("SMA_%d", s.Fast), fast},
		{fmt.Sprintf("SMA_%d", s.Slow), slow},
	}, signal)
}
