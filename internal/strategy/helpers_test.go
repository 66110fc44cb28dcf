package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/series"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// candlesFromCloses builds doji bars with a one-unit range around each close.
func candlesFromCloses(closes []float64, spread float64) []candle.Candle {
	out := make([]candle.Candle, len(closes))
	for i, c := range closes {
		out[i] = candle.Candle{
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + spread,
			Low:       c - spread,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

// candlesFromOHLC builds bars from {open, high, low, close} rows.
func candlesFromOHLC(rows [][4]float64) []candle.Candle {
	out := make([]candle.Candle, len(rows))
	for i, r := range rows {
		out[i] = candle.Candle{
			Timestamp: testStart.Add(time.Duration(i) * time.Hour),
			Open:      r[0],
			High:      r[1],
			Low:       r[2],
			Close:     r[3],
			Volume:    1,
		}
	}
	return out
}

func frameOf(t *testing.T, candles []candle.Candle) *series.Frame {
	t.Helper()
	f, err := series.New(candles)
	require.NoError(t, err)
	return f
}

func applySignal(t *testing.T, s Strategy, f *series.Frame) (*series.Frame, []int) {
	t.Helper()
	out, err := s.Apply(f)
	require.NoError(t, err)
	sig, err := out.Signal()
	require.NoError(t, err)
	return out, sig
}

// entries returns the bars where the signal moves from flat to long.
func entries(sig []int) []int {
	var out []int
	for i := range sig {
		if sig[i] == 1 && (i == 0 || sig[i-1] == 0) {
			out = append(out, i)
		}
	}
	return out
}

func trendingSine(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 0.3*float64(i) + 4*math.Sin(float64(i)/6)
	}
	return out
}
