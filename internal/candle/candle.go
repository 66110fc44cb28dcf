// Package candle
package candle

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptySeries     = errors.New("candle series is empty")
	ErrUnorderedSeries = errors.New("candle timestamps must be strictly increasing")
	ErrInvalidCandle   = errors.New("invalid candle")
)

type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Symbol    string    `json:"symbol,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	Source    string    `json:"source,omitempty"`
}

// Validate checks if a candle has valid data
func (c *Candle) Validate() error {
	if c.Timestamp.IsZero() {
		return errors.New("candle timestamp is zero")
	}
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("candle values must be finite")
		}
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return errors.New("candle prices must be positive")
	}
	if c.High < c.Low {
		return errors.New("candle high cannot be less than low")
	}
	if c.Open < c.Low || c.Open > c.High {
		return errors.New("candle open price must be between high and low")
	}
	if c.Close < c.Low || c.Close > c.High {
		return errors.New("candle close price must be between high and low")
	}
	if c.Volume < 0 {
		return errors.New("candle volume cannot be negative")
	}
	return nil
}

// IsBearish reports a red candle (close below open).
func (c *Candle) IsBearish() bool { return c.Close < c.Open }

// IsBullish reports a green candle (close above open).
func (c *Candle) IsBullish() bool { return c.Close > c.Open }

// ValidateSeries checks that a series is non-empty, that every candle is valid
// and that timestamps are strictly increasing.
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	for i := range candles {
		if err := candles[i].Validate(); err != nil {
			return fmt.Errorf("%w at index %d (%s): %v", ErrInvalidCandle, i, candles[i].Timestamp.Format(time.RFC3339), err)
		}
		if i > 0 && !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("%w: index %d at %s follows %s", ErrUnorderedSeries, i,
				candles[i].Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func Opens(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Open
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Low
	}
	return out
}

func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close
	}
	return out
}
