package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendEMA(t *testing.T) {
	out, sig := applySignal(t, NewTrendEMA(), frameOf(t, candlesFromCloses(trendingSine(300), 0.5)))

	// The only qualifying cross happens at bar 31: close above EMA_200, RSI
	// about 65 and ADX well above 20.
	assert.Equal(t, []int{31}, entries(sig))
	assert.Equal(t, 0, sig[30])
	assert.Equal(t, 1, sig[31])

	for _, col := range []string{"EMA_8", "EMA_21", "EMA_50", "EMA_200", "RSI", "ADX"} {
		assert.True(t, out.Has(col), col)
	}

	// Long state only ends on a close below EMA_50.
	closes := out.Closes()
	ema50, err := out.Column("EMA_50")
	require.NoError(t, err)
	for i := 32; i < len(sig); i++ {
		if sig[i-1] == 1 && sig[i] == 0 {
			assert.Less(t, closes[i], ema50[i], "bar %d", i)
		}
	}
}

func TestTrendEMADowntrendNeverBuys(t *testing.T) {
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 500 - float64(i)
	}
	_, sig := applySignal(t, NewTrendEMA(), frameOf(t, candlesFromCloses(closes, 0.5)))
	assert.Empty(t, entries(sig))
}
