package marketdata

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Default request rates. Binance allows 6000 request weight per minute per IP
// and a 1000-bar kline page weighs 2; 10 pages a second stays well inside that
// even with a 24h ticker call (weight 80) in the same minute.
const (
	DefaultBinanceRate = 10.0
	DefaultWallexRate  = 5.0
)

// newLimiter paces requests at rps per second with no burst. rps <= 0 falls
// back to def.
func newLimiter(rps, def float64) *rate.Limiter {
	if rps <= 0 {
		rps = def
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// wait blocks until l admits one request. A nil limiter never blocks.
func wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}
