// Package db
package db

import (
	"context"
	"time"

	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/db/conf"
)

// Storage is the candle cache used by the market-data loader.
type Storage interface {
	// GetCandles returns candles in [start, end) ordered by timestamp. An empty
	// source matches every source.
	GetCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time) ([]candle.Candle, error)
	// SaveCandles upserts candles keyed by symbol, timeframe, timestamp and source.
	SaveCandles(ctx context.Context, candles []candle.Candle) error
	// ReplaceCandles atomically drops the cached candles of symbol, timeframe
	// and source in [start, end) and saves candles in their place. Nothing
	// changes when any candle is invalid.
	ReplaceCandles(ctx context.Context, symbol, timeframe, source string, start, end time.Time, candles []candle.Candle) error
	Close() error
}

// Open returns a Postgres store for connStr, or an in-memory store when
// connStr is empty.
func Open(ctx context.Context, connStr string) (Storage, error) {
	if connStr == "" {
		return NewMemory(), nil
	}
	c, err := conf.Open(ctx, connStr)
	if err != nil {
		return nil, err
	}
	p, err := New(ctx, *c)
	if err != nil {
		c.DB.Close()
		return nil, err
	}
	return p, nil
}
