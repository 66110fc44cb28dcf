// Package marketdata downloads OHLCV candles from public exchange APIs and
// caches them through db.Storage.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/simple-backtester/internal/candle"
)

var (
	// ErrNoData means the source returned no candles for the requested range.
	// It is distinct from a successful run that never traded.
	ErrNoData              = errors.New("no market data available")
	ErrUnsupportedSource   = errors.New("unsupported market data source")
	ErrUnsupportedInterval = errors.New("unsupported timeframe for source")
)

// Source names.
const (
	SourceBinance = "binance"
	SourceWallex  = "wallex"
)

// Fetcher downloads candles in [start, end) for one symbol and timeframe.
type Fetcher interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
}

// Options configures the fetchers built by New.
type Options struct {
	ProxyURL     string
	WallexAPIKey string
	Retry        RetryConfig
	// RateLimit is the request rate per second; 0 uses the source default.
	RateLimit float64
}

// New builds the fetcher for source.
func New(source string, opts Options) (Fetcher, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceBinance, "":
		return NewBinance(opts.ProxyURL, opts.Retry, opts.RateLimit)
	case SourceWallex:
		return NewWallex(opts.WallexAPIKey, opts.Retry, opts.RateLimit), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

// NormalizeSymbol turns "btc-usdt" or "BTC/USDT" into "BTCUSDT".
func NormalizeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "/", "")
}
