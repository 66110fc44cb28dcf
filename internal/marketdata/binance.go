package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/tfutils"
	"github.com/amirphl/simple-backtester/internal/utils"
)

const (
	DefaultBinanceURL = "https://api.binance.com"
	// BinancePageLimit is the largest kline page the public endpoint serves.
	BinancePageLimit = 1000

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
)

var binanceIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"1d":  "1d",
	"1w":  "1w",
	"1M":  "1M",
}

// stablecoin bases skipped by TopSymbols.
var stableBases = []string{"FDUSD", "USDC", "TUSD", "BUSD", "DAI", "USDP"}

// Binance reads public klines from the Binance REST API.
type Binance struct {
	BaseURL   string
	PageLimit int
	// Limiter paces every request, retries included.
	Limiter *rate.Limiter

	client *http.Client
	retry  RetryConfig
}

// NewBinance builds a client, routed through proxyURL when it is set and paced
// at rps requests per second (DefaultBinanceRate when rps <= 0).
func NewBinance(proxyURL string, rc RetryConfig, rps float64) (*Binance, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		proxyParsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyParsed)
		utils.GetLogger().Infof("Binance | Using proxy: %s", proxyParsed.Host)
	}

	return &Binance{
		BaseURL:   DefaultBinanceURL,
		PageLimit: BinancePageLimit,
		Limiter:   newLimiter(rps, DefaultBinanceRate),
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		retry: rc.withDefaults(),
	}, nil
}

func (b *Binance) Name() string { return SourceBinance }

// FetchCandles walks the kline endpoint page by page. Each page starts one
// millisecond after the previous page's last open time; a short or empty page
// ends the walk.
func (b *Binance) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	interval, ok := binanceIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedInterval, timeframe, b.Name())
	}
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range: %s is not after %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	limit := b.PageLimit
	if limit <= 0 || limit > BinancePageLimit {
		limit = BinancePageLimit
	}
	apiSymbol := NormalizeSymbol(symbol)
	since := start.UnixMilli()
	endMs := end.UnixMilli() - 1

	candles := make([]candle.Candle, 0, min(tfutils.BarsBetween(timeframe, start, end), 100*limit))
	for page := 1; since <= endMs; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		q := url.Values{}
		q.Set("symbol", apiSymbol)
		q.Set("interval", interval)
		q.Set("startTime", strconv.FormatInt(since, 10))
		q.Set("endTime", strconv.FormatInt(endMs, 10))
		q.Set("limit", strconv.Itoa(limit))

		var raw [][]any
		if err := b.getJSON(ctx, "/api/v3/klines?"+q.Encode(), &raw); err != nil {
			return nil, fmt.Errorf("fetching %s %s page %d: %w", apiSymbol, timeframe, page, err)
		}

		batch, lastOpen := parseKlines(raw, symbol, timeframe)
		candles = append(candles, batch...)
		utils.GetLogger().Debugf("Binance | %s %s page %d: %d candles", apiSymbol, timeframe, page, len(raw))

		if len(raw) < limit || lastOpen < since {
			break
		}
		since = lastOpen + 1
	}

	utils.GetLogger().Infof("Binance | Downloaded %d candles for %s %s", len(candles), apiSymbol, timeframe)
	return candles, nil
}

// parseKlines converts raw kline rows. Rows that are too short or carry an
// unparseable open time are skipped, invalid candles are dropped. It also
// returns the largest open time seen, or -1.
func parseKlines(raw [][]any, symbol, timeframe string) ([]candle.Candle, int64) {
	candles := make([]candle.Candle, 0, len(raw))
	lastOpen := int64(-1)
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		ts, ok := parseMillis(row[0])
		if !ok {
			continue
		}
		if ts > lastOpen {
			lastOpen = ts
		}

		c := candle.Candle{
			Timestamp: time.UnixMilli(ts).UTC(),
			Open:      parseNum(row[1]),
			High:      parseNum(row[2]),
			Low:       parseNum(row[3]),
			Close:     parseNum(row[4]),
			Volume:    parseNum(row[5]),
			Symbol:    NormalizeSymbol(symbol),
			Timeframe: timeframe,
			Source:    SourceBinance,
		}
		if err := c.Validate(); err != nil {
			utils.GetLogger().Debugf("Binance | skipping kline at %s: %v", c.Timestamp.Format(time.RFC3339), err)
			continue
		}
		candles = append(candles, c)
	}
	return candles, lastOpen
}

func parseMillis(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		ts, err := strconv.ParseInt(n, 10, 64)
		return ts, err == nil
	case json.Number:
		ts, err := n.Int64()
		return ts, err == nil
	default:
		return 0, false
	}
}

// parseNum returns 0 for anything it cannot read; Validate rejects the candle.
func parseNum(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

type ticker24h struct {
	Symbol      string `json:"symbol"`
	LastPrice   string `json:"lastPrice"`
	QuoteVolume string `json:"quoteVolume"`
}

// TopSymbols returns the n USDT pairs with the largest 24h quote volume,
// skipping stablecoin bases.
func (b *Binance) TopSymbols(ctx context.Context, n int) ([]string, error) {
	var tickers []ticker24h
	if err := b.getJSON(ctx, "/api/v3/ticker/24hr", &tickers); err != nil {
		return nil, fmt.Errorf("fetching 24h tickers: %w", err)
	}

	type ranked struct {
		symbol string
		volume float64
	}
	var pairs []ranked
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, "USDT") || t.Symbol == "USDT" || hasStableBase(t.Symbol) {
			continue
		}
		vol, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		pairs = append(pairs, ranked{t.Symbol, vol})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].volume > pairs[j].volume })
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]string, 0, n)
	for _, p := range pairs[:n] {
		out = append(out, p.symbol)
	}
	return out, nil
}

func hasStableBase(symbol string) bool {
	for _, s := range stableBases {
		if strings.HasPrefix(symbol, s) {
			return true
		}
	}
	return false
}

// getJSON issues a GET with retries. Retryable statuses, network errors and
// decode failures are retried; any other status fails at once.
func (b *Binance) getJSON(ctx context.Context, path string, out any) error {
	apiURL := strings.TrimRight(b.BaseURL, "/") + path

	return withRetry(ctx, "Binance", b.retry, func() error {
		if err := wait(ctx, b.Limiter); err != nil {
			return permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return permanent(fmt.Errorf("error creating request: %w", err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return permanent(ctx.Err())
			}
			return fmt.Errorf("network error: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			apiErr := fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if isRetryableHTTPStatus(resp.StatusCode) {
				return apiErr
			}
			return permanent(apiErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("JSON decode error: %w", err)
		}
		return nil
	})
}
