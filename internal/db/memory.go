package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/simple-backtester/internal/candle"
)

// MemoryStorage keeps candles in a map for the lifetime of the process.
type MemoryStorage struct {
	mu sync.RWMutex

	// Candles keyed by symbol|timeframe|timestamp|source
	candles map[string]candle.Candle
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{candles: make(map[string]candle.Candle)}
}

func candleKey(symbol, timeframe string, ts time.Time, source string) string {
	return strings.ToUpper(symbol) + "|" + timeframe + "|" + ts.UTC().Format(time.RFC3339Nano) + "|" + source
}

func (m *MemoryStorage) SaveCandles(ctx context.Context, candles []candle.Candle) error {
	if err := validateAll(candles); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(candles)
	return nil
}

func (m *MemoryStorage) ReplaceCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time, candles []candle.Candle) error {
	if err := validateAll(candles); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteRange(symbol, timeframe, source, start, end)
	m.put(candles)
	return nil
}

func validateAll(candles []candle.Candle) error {
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("invalid candle at index %d for %s %s at %s: %w",
				i, candles[i].Symbol, candles[i].Timeframe, candles[i].Timestamp, err)
		}
	}
	return nil
}

// put stores candles; the caller holds the write lock.
func (m *MemoryStorage) put(candles []candle.Candle) {
	for _, c := range candles {
		c.Timestamp = c.Timestamp.UTC()
		m.candles[candleKey(c.Symbol, c.Timeframe, c.Timestamp, c.Source)] = c
	}
}

func (m *MemoryStorage) GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []candle.Candle
	m.each(symbol, timeframe, source, start, end, func(c candle.Candle) { out = append(out, c) })
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) DeleteCandlesInRange(ctx context.Context, symbol, timeframe, source string, start, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteRange(symbol, timeframe, source, start, end)
	return nil
}

func (m *MemoryStorage) deleteRange(symbol, timeframe, source string, start, end time.Time) {
	var keys []string
	m.each(symbol, timeframe, source, start, end, func(c candle.Candle) {
		keys = append(keys, candleKey(c.Symbol, c.Timeframe, c.Timestamp, c.Source))
	})
	for _, k := range keys {
		delete(m.candles, k)
	}
}

func (m *MemoryStorage) Close() error { return nil }

// each visits matching candles; the caller holds the lock.
func (m *MemoryStorage) each(symbol, timeframe, source string, start, end time.Time, fn func(candle.Candle)) {
	start = start.UTC()
	end = end.UTC()
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, symbol) || c.Timeframe != timeframe {
			continue
		}
		if source != "" && c.Source != source {
			continue
		}
		if !c.Timestamp.Before(start) && c.Timestamp.Before(end) {
			fn(c)
		}
	}
}
