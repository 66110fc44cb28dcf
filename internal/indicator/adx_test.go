package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWilderSmooth(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected []float64
	}{
		{
			name:     "Seed then running sum",
			values:   []float64{1, 2, 3, 4, 5},
			period:   2,
			expected: []float64{nan, 1.5, 3.75, 5.875, 7.9375},
		},
		{
			name:     "Leading NaN is skipped while seeding",
			values:   []float64{nan, 1, 2, 3},
			period:   2,
			expected: []float64{nan, nan, 1.5, 3.75},
		},
		{
			name:     "NaN after seed carries state",
			values:   []float64{1, 2, nan, 4},
			period:   2,
			expected: []float64{nan, 1.5, nan, 4.75},
		},
		{
			name:     "Too short",
			values:   []float64{1, 2},
			period:   2,
			expected: []float64{nan, nan},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSeries(t, tt.expected, WilderSmooth(tt.values, tt.period), 1e-12)
		})
	}
}

func TestDirectionalMovement(t *testing.T) {
	highs := []float64{10, 12, 11, 11}
	lows := []float64{8, 9, 6, 6}

	plus, minus := DirectionalMovement(highs, lows)
	assert.Equal(t, []float64{0, 2, 0, 0}, plus)
	assert.Equal(t, []float64{0, 0, 3, 0}, minus)
}

func TestCalculateADX(t *testing.T) {
	t.Run("Strong uptrend", func(t *testing.T) {
		n := 40
		highs, lows, closes := make([]float64, n), make([]float64, n), make([]float64, n)
		for i := 0; i < n; i++ {
			closes[i] = 100 + 2*float64(i)
			highs[i] = closes[i] + 1
			lows[i] = closes[i] - 1
		}
		adx := CalculateADX(highs, lows, closes, 14)

		assert.True(t, math.IsNaN(adx.ADX[25]))
		assert.True(t, IsDefined(adx.ADX[26]))
		last := n - 1
		assert.Greater(t, adx.ADX[last], 20.0)
		assert.Greater(t, adx.PlusDI[last], adx.MinusDI[last])
		assert.InDelta(t, 100.0, adx.DX[last], 1e-9)
	})

	t.Run("Flat market is undefined", func(t *testing.T) {
		flat := make([]float64, 30)
		for i := range flat {
			flat[i] = 100
		}
		adx := CalculateADX(flat, flat, flat, 14)
		for i := range flat {
			assert.True(t, math.IsNaN(adx.ADX[i]), "index %d", i)
			assert.True(t, math.IsNaN(adx.DX[i]), "index %d", i)
		}
	})
}
