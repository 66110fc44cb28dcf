package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/db"
	"github.com/amirphl/simple-backtester/internal/tfutils"
	"github.com/amirphl/simple-backtester/internal/utils"
)

// Loader serves candles from the cache and falls back to the fetcher when the
// cache does not cover the requested range.
type Loader struct {
	store   db.Storage
	fetcher Fetcher

	// FillGaps inserts flat zero-volume candles for bars the source skipped.
	FillGaps bool
	// Refresh ignores the cache and always downloads.
	Refresh bool
	// SaveTimeout bounds the cache write.
	SaveTimeout time.Duration

	now func() time.Time
}

func NewLoader(store db.Storage, fetcher Fetcher) *Loader {
	return &Loader{
		store:       store,
		fetcher:     fetcher,
		SaveTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

// Load returns the candles of symbol/timeframe in [start, end), sorted and
// unique by timestamp. It returns ErrNoData when neither the cache nor the
// source has any candle in the range.
func (l *Loader) Load(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	if _, err := tfutils.ParseTimeframe(timeframe); err != nil {
		return nil, err
	}
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, fmt.Errorf("invalid range: %s is not after %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	symbol = NormalizeSymbol(symbol)
	source := l.fetcher.Name()

	if !l.Refresh {
		cached, err := l.store.GetCandles(ctx, symbol, timeframe, source, start, end)
		if err != nil {
			return nil, fmt.Errorf("loading candles from cache: %w", err)
		}
		if l.covers(cached, timeframe, start, end) {
			utils.GetLogger().Debugf("Loader | Cache hit: %d candles for %s %s", len(cached), symbol, timeframe)
			return cached, nil
		}
		utils.GetLogger().Infof("Loader | Cache has %d candles for %s %s, downloading from %s...", len(cached), symbol, timeframe, source)
	}

	downloaded, err := l.fetcher.FetchCandles(ctx, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("downloading %s %s from %s: %w", symbol, timeframe, source, err)
	}

	processed := processCandles(downloaded, symbol, timeframe, source, start, end, l.FillGaps)
	if len(processed) == 0 {
		return nil, fmt.Errorf("%w for %s %s from %s to %s", ErrNoData, symbol, timeframe,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	// Earlier bars of this source in the range, gap fillers included, are dropped.
	saveCtx, cancel := context.WithTimeout(ctx, l.SaveTimeout)
	err = l.store.ReplaceCandles(saveCtx, symbol, timeframe, source, start, end, processed)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("saving candles to cache: %w", err)
	}
	utils.GetLogger().Infof("Loader | Saved %d processed candles for %s %s", len(processed), symbol, timeframe)

	candles, err := l.store.GetCandles(ctx, symbol, timeframe, source, start, end)
	if err != nil {
		return nil, fmt.Errorf("reloading downloaded candles: %w", err)
	}
	return candles, nil
}

// covers reports whether cached reaches within one bar of both range edges.
// The end edge is clamped to the current time.
func (l *Loader) covers(cached []candle.Candle, timeframe string, start, end time.Time) bool {
	if len(cached) == 0 {
		return false
	}
	if now := l.now().UTC(); now.Before(end) {
		end = now
	}
	first, last := cached[0].Timestamp, cached[len(cached)-1].Timestamp
	return first.Before(tfutils.Next(timeframe, start)) &&
		!tfutils.Next(timeframe, tfutils.Next(timeframe, last)).Before(end)
}

// processCandles sorts, aligns timestamps to the timeframe, drops duplicates
// (first occurrence wins), trims to [start, to) and optionally fills gaps with
// flat candles at the previous close.
func processCandles(candles []candle.Candle, symbol, timeframe, source string, start, to time.Time, fillGaps bool) []candle.Candle {
	if len(candles) == 0 {
		return nil
	}
	sorted := make([]candle.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	seen := make(map[time.Time]struct{}, len(sorted))
	var trimmed []candle.Candle
	for _, c := range sorted {
		c.Timestamp = tfutils.Align(timeframe, c.Timestamp)
		if c.Timestamp.Before(start) || !c.Timestamp.Before(to) {
			continue
		}
		if _, dup := seen[c.Timestamp]; dup {
			continue
		}
		seen[c.Timestamp] = struct{}{}
		c.Symbol = symbol
		c.Timeframe = timeframe
		c.Source = source
		trimmed = append(trimmed, c)
	}
	if !fillGaps || len(trimmed) == 0 {
		return trimmed
	}

	complete := make([]candle.Candle, 0, len(trimmed))
	basePrice := trimmed[0].Close
	next := trimmed[0].Timestamp
	for _, c := range trimmed {
		for next.Before(c.Timestamp) {
			complete = append(complete, candle.Candle{
				Timestamp: next,
				Open:      basePrice,
				High:      basePrice,
				Low:       basePrice,
				Close:     basePrice,
				Symbol:    symbol,
				Timeframe: timeframe,
				Source:    source,
			})
			next = tfutils.Next(timeframe, next)
		}
		complete = append(complete, c)
		basePrice = c.Close
		next = tfutils.Next(timeframe, c.Timestamp)
	}
	return complete
}
