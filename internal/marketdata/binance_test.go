package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var klineBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// klineServer serves n one-minute klines starting at klineBase, honoring
// startTime, endTime and limit.
func klineServer(t *testing.T, n int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		startMs, _ := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		endMs, _ := strconv.ParseInt(r.URL.Query().Get("endTime"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		rows := [][]any{}
		for i := 0; i < n && len(rows) < limit; i++ {
			open := klineBase.Add(time.Duration(i) * time.Minute).UnixMilli()
			if open < startMs || open > endMs {
				continue
			}
			p := 100 + float64(i)
			rows = append(rows, []any{
				open,
				strconv.FormatFloat(p, 'f', 2, 64),
				strconv.FormatFloat(p+1, 'f', 2, 64),
				strconv.FormatFloat(p-1, 'f', 2, 64),
				strconv.FormatFloat(p+0.5, 'f', 2, 64),
				"12.5",
				open + 59999,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(rows))
	}))
}

func testBinance(t *testing.T, url string) *Binance {
	t.Helper()
	b, err := NewBinance("", fastRetry(), 1000)
	require.NoError(t, err)
	b.BaseURL = url
	return b
}

func TestBinanceFetchCandlesPaginates(t *testing.T) {
	tests := []struct {
		name          string
		available     int
		pageLimit     int
		rangeBars     int
		expectedBars  int
		expectedCalls int32
	}{
		{"three pages with a short tail", 7, 3, 10, 7, 3},
		{"exact multiple needs an empty page", 6, 3, 10, 6, 3},
		{"range stops before data ends", 20, 5, 8, 8, 2},
		{"no data", 0, 5, 10, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := klineServer(t, tt.available, &calls)
			defer srv.Close()

			b := testBinance(t, srv.URL)
			b.PageLimit = tt.pageLimit

			end := klineBase.Add(time.Duration(tt.rangeBars) * time.Minute)
			candles, err := b.FetchCandles(context.Background(), "btc-usdt", "1m", klineBase, end)
			require.NoError(t, err)
			require.Len(t, candles, tt.expectedBars)
			assert.Equal(t, tt.expectedCalls, atomic.LoadInt32(&calls))

			for i, c := range candles {
				assert.True(t, c.Timestamp.Equal(klineBase.Add(time.Duration(i)*time.Minute)))
				assert.Equal(t, "BTCUSDT", c.Symbol)
				assert.Equal(t, "1m", c.Timeframe)
				assert.Equal(t, SourceBinance, c.Source)
				assert.InDelta(t, 100+float64(i)+0.5, c.Close, 1e-9)
			}
		})
	}
}

func TestBinancePacesPages(t *testing.T) {
	var (
		mu       sync.Mutex
		arrivals []time.Time
	)
	var calls int32
	inner := klineServer(t, 20, &calls)
	defer inner.Close()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		http.Redirect(w, r, inner.URL+r.URL.RequestURI(), http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	b := testBinance(t, srv.URL)
	b.PageLimit = 5
	b.Limiter = newLimiter(40, DefaultBinanceRate)

	candles, err := b.FetchCandles(context.Background(), "BTCUSDT", "1m", klineBase, klineBase.Add(20*time.Minute))
	require.NoError(t, err)
	require.Len(t, candles, 20)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, 5)
	for i := 1; i < len(arrivals); i++ {
		assert.GreaterOrEqual(t, arrivals[i].Sub(arrivals[i-1]), 20*time.Millisecond, "gap before page %d", i+1)
	}
}

func TestBinanceLimiterHonorsContext(t *testing.T) {
	var calls int32
	srv := klineServer(t, 5, &calls)
	defer srv.Close()

	b := testBinance(t, srv.URL)
	b.Limiter = newLimiter(0.001, DefaultBinanceRate)
	require.True(t, b.Limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.FetchCandles(ctx, "BTCUSDT", "1m", klineBase, klineBase.Add(5*time.Minute))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestNewLimiterDefaults(t *testing.T) {
	assert.Equal(t, rate.Limit(DefaultBinanceRate), newLimiter(0, DefaultBinanceRate).Limit())
	assert.Equal(t, rate.Limit(2), newLimiter(2, DefaultBinanceRate).Limit())
	assert.Equal(t, 1, newLimiter(2, DefaultBinanceRate).Burst())
	assert.NoError(t, wait(context.Background(), nil))
}

func TestBinanceRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[[1709251200000,"10","11","9","10.5","1",1709251259999]]`))
	}))
	defer srv.Close()

	b := testBinance(t, srv.URL)
	candles, err := b.FetchCandles(context.Background(), "BTCUSDT", "1m", klineBase, klineBase.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 10.5, candles[0].Close)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBinanceDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	b := testBinance(t, srv.URL)
	_, err := b.FetchCandles(context.Background(), "NOPE", "1m", klineBase, klineBase.Add(time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBinanceRejectsBadInput(t *testing.T) {
	b := testBinance(t, "http://127.0.0.1:0")

	_, err := b.FetchCandles(context.Background(), "BTCUSDT", "3m", klineBase, klineBase.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUnsupportedInterval)

	_, err = b.FetchCandles(context.Background(), "BTCUSDT", "1m", klineBase, klineBase)
	assert.Error(t, err)

	_, err = NewBinance("://bad proxy", fastRetry(), 0)
	assert.Error(t, err)
}

func TestParseKlines(t *testing.T) {
	raw := [][]any{
		{float64(1709251200000), "10", "11", "9", "10.5", "1"},
		{"1709251260000", 10.5, 12.0, 10.0, 11.0, 2.0},
		{float64(1709251320000), "10"},
		{true, "10", "11", "9", "10.5", "1"},
		{float64(1709251380000), "10", "9", "11", "10.5", "1"},
		{float64(1709251440000), "abc", "11", "9", "10.5", "1"},
	}
	// Short rows, bad times, high below low and unparseable prices are dropped.
	candles, last := parseKlines(raw, "btc-usdt", "1m")
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1709251440000), last)
	assert.Equal(t, 11.0, candles[1].Close)
	assert.Equal(t, "BTCUSDT", candles[0].Symbol)
}

func TestBinanceTopSymbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"1","quoteVolume":"900"},
			{"symbol":"ETHUSDT","lastPrice":"1","quoteVolume":"800"},
			{"symbol":"USDCUSDT","lastPrice":"1","quoteVolume":"5000"},
			{"symbol":"ETHBTC","lastPrice":"1","quoteVolume":"7000"},
			{"symbol":"SOLUSDT","lastPrice":"1","quoteVolume":"850"},
			{"symbol":"XRPUSDT","lastPrice":"1","quoteVolume":"n/a"},
			{"symbol":"ADAUSDT","lastPrice":"1","quoteVolume":"10"}
		]`))
	}))
	defer srv.Close()

	b := testBinance(t, srv.URL)

	got, err := b.TopSymbols(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "SOLUSDT", "ETHUSDT"}, got)

	got, err = b.TopSymbols(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}
