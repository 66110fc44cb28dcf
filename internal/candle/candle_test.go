package candle

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestCandleValidate(t *testing.T) {
	ts := mustParseTime(t, "2024-01-01T00:00:00Z")

	tests := []struct {
		name    string
		candle  Candle
		wantErr string
	}{
		{"valid", Candle{Timestamp: ts, Open: 10, High: 12, Low: 9, Close: 11, Volume: 5}, ""},
		{"zero timestamp", Candle{Open: 10, High: 12, Low: 9, Close: 11}, "timestamp is zero"},
		{"non-positive price", Candle{Timestamp: ts, Open: 0, High: 12, Low: 9, Close: 11}, "must be positive"},
		{"high below low", Candle{Timestamp: ts, Open: 10, High: 8, Low: 9, Close: 8.5}, "high cannot be less than low"},
		{"open outside range", Candle{Timestamp: ts, Open: 13, High: 12, Low: 9, Close: 11}, "open price"},
		{"close outside range", Candle{Timestamp: ts, Open: 10, High: 12, Low: 9, Close: 8}, "close price"},
		{"negative volume", Candle{Timestamp: ts, Open: 10, High: 12, Low: 9, Close: 11, Volume: -1}, "volume"},
		{"nan price", Candle{Timestamp: ts, Open: math.NaN(), High: 12, Low: 9, Close: 11}, "finite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candle.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSeries(t *testing.T) {
	t0 := mustParseTime(t, "2024-01-01T00:00:00Z")
	good := Candle{Timestamp: t0, Open: 10, High: 11, Low: 9, Close: 10}
	next := Candle{Timestamp: t0.Add(time.Hour), Open: 10, High: 11, Low: 9, Close: 10}

	assert.ErrorIs(t, ValidateSeries(nil), ErrEmptySeries)
	assert.NoError(t, ValidateSeries([]Candle{good, next}))
	assert.ErrorIs(t, ValidateSeries([]Candle{next, good}), ErrUnorderedSeries)
	assert.ErrorIs(t, ValidateSeries([]Candle{good, good}), ErrUnorderedSeries)

	bad := next
	bad.High = 1
	err := ValidateSeries([]Candle{good, bad})
	require.ErrorIs(t, err, ErrInvalidCandle)
	assert.Contains(t, err.Error(), "index 1")
}

func TestColumnHelpers(t *testing.T) {
	t0 := mustParseTime(t, "2024-01-01T00:00:00Z")
	cs := []Candle{
		{Timestamp: t0, Open: 1, High: 3, Low: 0.5, Close: 2},
		{Timestamp: t0.Add(time.Minute), Open: 2, High: 4, Low: 1.5, Close: 1.8},
	}
	assert.Equal(t, []float64{1, 2}, Opens(cs))
	assert.Equal(t, []float64{3, 4}, Highs(cs))
	assert.Equal(t, []float64{0.5, 1.5}, Lows(cs))
	assert.Equal(t, []float64{2, 1.8}, Closes(cs))
	assert.True(t, cs[0].IsBullish())
	assert.True(t, cs[1].IsBearish())
}
