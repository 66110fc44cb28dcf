package backtest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult(t *testing.T) *Result {
	t.Helper()
	closes := []float64{100, 100, 110, 121, 100}
	signal := []int{1, 1, 1, 0, 0}
	f := frameWithSignal(t, closes, signal)
	require.NoError(t, f.Set("RSI", []float64{nan(), 55.5, 60.25, 70, 40}))
	res, err := Run(f, DefaultConfig())
	require.NoError(t, err)
	res.Strategy = "simple_ma"
	res.Symbol = "BTC/USDT"
	res.Timeframe = "1h"
	return res
}

func TestRoundAndFormat(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.2349, 2))
	assert.Equal(t, -2.35, Round(-2.345, 2))
	assert.Equal(t, "10.50", FormatFixed(10.5, 2))
	assert.Equal(t, "", FormatFixed(nan(), 2))
}

func TestRoundSignificant(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		expected float64
	}{
		{"sub-cent price keeps its digits", 0.0000123456789, 0.000012345679},
		{"large price keeps eight digits", 65432.1294, 65432.129},
		{"float noise collapses", 94.99999999999, 95},
		{"small integer part", 1.23456789123, 1.2345679},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, RoundSignificant(tt.in, PriceDigits), 1e-15)
		})
	}
	assert.True(t, math.IsNaN(RoundSignificant(nan(), PriceDigits)))
	assert.Equal(t, "0.000012345679", FormatPrice(0.0000123456789))
	assert.Equal(t, "95", FormatPrice(94.99999999999))
	assert.Equal(t, "", FormatPrice(nan()))
}

func TestSummary(t *testing.T) {
	s := sampleResult(t).Summary()
	assert.Contains(t, s, "Backtest Results (simple_ma BTC/USDT 1h)")
	assert.Contains(t, s, "Final Equity=1000.00")
	assert.Contains(t, s, "Closed Trades=1, Wins=0, Losses=1")
	assert.Contains(t, s, "Signal Sell=1")
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleResult(t).WriteTradesCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Timestamp", "Type", "Price", "Reason", "PnLPct", "BalanceAfter"}, rows[0])
	assert.Equal(t, "Buy", rows[1][1])
	assert.Equal(t, "Signal Buy", rows[1][3])
	assert.Equal(t, "1000.00", rows[1][5])
	assert.Equal(t, "Sell", rows[2][1])
	assert.Equal(t, "0.00", rows[2][4])
}

func TestWriteEquityAndFrameCSV(t *testing.T) {
	res := sampleResult(t)

	var eq bytes.Buffer
	require.NoError(t, res.WriteEquityCSV(&eq))
	rows, err := csv.NewReader(&eq).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "1210.00", rows[4][1])
	assert.Equal(t, "-17.36", rows[5][2])

	var fr bytes.Buffer
	require.NoError(t, res.WriteFrameCSV(&fr))
	rows, err = csv.NewReader(&fr).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Timestamp", "Open", "High", "Low", "Close", "Volume", "Signal", "RSI", "Equity_Curve", "Drawdown"}, rows[0])
	assert.Equal(t, "", rows[1][7])
	assert.Equal(t, "55.500000", rows[2][7])
}

func TestWriteJSON(t *testing.T) {
	res := sampleResult(t)
	var buf bytes.Buffer
	require.NoError(t, res.WriteJSON(&buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, res.RunID.String(), decoded["run_id"])
	assert.Len(t, decoded["equity_curve"], 5)
	assert.NotContains(t, decoded, "Frame")

	trades, ok := decoded["trade_log"].([]any)
	require.True(t, ok)
	require.Len(t, trades, 2)
	assert.NotContains(t, trades[0], "entry_time")
	assert.NotContains(t, trades[0], "entry_price")
	sell, ok := trades[1].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, testStart.Add(time.Hour).Format(time.RFC3339), sell["entry_time"])
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	paths, err := sampleResult(t).Save(dir)
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		assert.True(t, strings.HasPrefix(p, dir))
		assert.Contains(t, p, "simple_ma_BTC-USDT_1h_")
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
