package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/tfutils"
	"github.com/amirphl/simple-backtester/internal/utils"
	wallex "github.com/wallexchange/wallex-go"
	"golang.org/x/time/rate"
)

// WallexWindow is the number of bars requested per Wallex history call.
const WallexWindow = 1000

var wallexResolutions = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "1D",
	"1w":  "1W",
}

// candleSource is the part of the Wallex client the fetcher needs.
type candleSource interface {
	Candles(symbol, resolution string, from, to time.Time) ([]*wallex.Candle, error)
}

// Wallex reads candle history through wallex-go.
type Wallex struct {
	// Limiter paces every window request, retries included.
	Limiter *rate.Limiter

	client candleSource
	retry  RetryConfig
}

// NewWallex paces requests at rps per second (DefaultWallexRate when rps <= 0).
func NewWallex(apiKey string, rc RetryConfig, rps float64) *Wallex {
	return &Wallex{
		Limiter: newLimiter(rps, DefaultWallexRate),
		client:  wallex.New(wallex.ClientOptions{APIKey: apiKey}),
		retry:   rc.withDefaults(),
	}
}

func (w *Wallex) Name() string { return SourceWallex }

// FetchCandles requests [start, end) in windows of WallexWindow bars.
func (w *Wallex) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	resolution, ok := wallexResolutions[timeframe]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedInterval, timeframe, w.Name())
	}
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range: %s is not after %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	apiSymbol := NormalizeSymbol(symbol)
	var candles []candle.Candle
	for _, win := range splitRange(start, end, tfutils.GetTimeframeDuration(timeframe)*WallexWindow) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var raw []*wallex.Candle
		err := withRetry(ctx, "Wallex", w.retry, func() error {
			if err := wait(ctx, w.Limiter); err != nil {
				return permanent(err)
			}
			var err error
			raw, err = w.client.Candles(apiSymbol, resolution, win.start, win.end)
			if err != nil {
				return fmt.Errorf("fetching candles: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetching %s %s from %s: %w", apiSymbol, timeframe, win.start.Format(time.RFC3339), err)
		}

		for _, wc := range raw {
			if wc == nil {
				continue
			}
			c := candle.Candle{
				Timestamp: wc.Timestamp.UTC(),
				Open:      parseWallexNumber(wc.Open),
				High:      parseWallexNumber(wc.High),
				Low:       parseWallexNumber(wc.Low),
				Close:     parseWallexNumber(wc.Close),
				Volume:    parseWallexNumber(wc.Volume),
				Symbol:    apiSymbol,
				Timeframe: timeframe,
				Source:    w.Name(),
			}
			if err := c.Validate(); err != nil {
				continue
			}
			candles = append(candles, c)
		}
	}

	utils.GetLogger().Infof("Wallex | Downloaded %d candles for %s %s", len(candles), apiSymbol, timeframe)
	return candles, nil
}

func parseWallexNumber(n wallex.Number) float64 {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0
	}
	return f
}

type window struct{ start, end time.Time }

// splitRange cuts [start, end) into consecutive windows no longer than step.
func splitRange(start, end time.Time, step time.Duration) []window {
	if step <= 0 {
		return []window{{start, end}}
	}
	var out []window
	for cur := start; cur.Before(end); cur = cur.Add(step) {
		next := cur.Add(step)
		if next.After(end) {
			next = end
		}
		out = append(out, window{cur, next})
	}
	return out
}
