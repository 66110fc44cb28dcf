package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func meanReversionCloses() []float64 {
	closes := make([]float64, 0, 42)
	for i := 0; i < 30; i++ {
		if i%2 == 1 {
			closes = append(closes, 100.5)
		} else {
			closes = append(closes, 99.5)
		}
	}
	// Sell-off below the lower band, then a rally through the upper band.
	closes = append(closes, 97, 94, 91, 88)
	closes = append(closes, 90, 93, 96, 99, 102, 105, 108, 111)
	return closes
}

func TestBollingerRSI(t *testing.T) {
	out, sig := applySignal(t, NewBollingerRSI(), frameOf(t, candlesFromCloses(meanReversionCloses(), 0.5)))

	expected := make([]int, 42)
	for i := 32; i <= 40; i++ {
		expected[i] = 1
	}
	assert.Equal(t, expected, sig)
	assert.Equal(t, []string{"SMA_20", "Std_Dev", "BB_Upper", "BB_Lower", "RSI", "Signal"}, out.Columns())

	// Warm-up bars have undefined bands and resolve to flat.
	assert.True(t, math.IsNaN(out.Value("BB_Lower", 18)))
	assert.Equal(t, 0, sig[18])
}

func TestBollingerRSIFlatSeriesNeverTrades(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	_, sig := applySignal(t, NewBollingerRSI(), frameOf(t, candlesFromCloses(closes, 1)))
	assert.Empty(t, entries(sig))
}
