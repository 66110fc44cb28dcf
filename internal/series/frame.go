// Package series holds a candle series together with the named numeric
// columns derived from it: indicators, the Signal column and the simulator's
// Equity_Curve and Drawdown. Every column is aligned 1:1 with the candles.
package series

import (
	"errors"
	"fmt"
	"math"

	"github.com/amirphl/simple-backtester/internal/candle"
)

// Well-known column names.
const (
	SignalColumn   = "Signal"
	EquityColumn   = "Equity_Curve"
	DrawdownColumn = "Drawdown"
)

var (
	ErrMissingColumn  = errors.New("missing column")
	ErrLengthMismatch = errors.New("column length does not match series length")
	ErrInvalidSignal  = errors.New("signal values must be 0 or 1")
)

// Frame is a validated candle series with ordered named columns. Columns are
// copied on the way in and on the way out, so callers can never mutate a
// frame's data through a slice they hold.
type Frame struct {
	candles []candle.Candle
	names   []string
	cols    map[string][]float64
}

// New validates candles and wraps a private copy of them in a frame.
func New(candles []candle.Candle) (*Frame, error) {
	if err := candle.ValidateSeries(candles); err != nil {
		return nil, err
	}
	return &Frame{
		candles: append([]candle.Candle(nil), candles...),
		cols:    make(map[string][]float64),
	}, nil
}

// Clone returns a deep copy. Independent runs each work on their own clone.
func (f *Frame) Clone() *Frame {
	c := &Frame{
		candles: append([]candle.Candle(nil), f.candles...),
		names:   append([]string(nil), f.names...),
		cols:    make(map[string][]float64, len(f.cols)),
	}
	for name, values := range f.cols {
		c.cols[name] = append([]float64(nil), values...)
	}
	return c
}

func (f *Frame) Len() int { return len(f.candles) }

// Candles returns a copy of the underlying candles.
func (f *Frame) Candles() []candle.Candle {
	return append([]candle.Candle(nil), f.candles...)
}

// Candle returns the bar at index i.
func (f *Frame) Candle(i int) candle.Candle { return f.candles[i] }

func (f *Frame) Opens() []float64  { return candle.Opens(f.candles) }
func (f *Frame) Highs() []float64  { return candle.Highs(f.candles) }
func (f *Frame) Lows() []float64   { return candle.Lows(f.candles) }
func (f *Frame) Closes() []float64 { return candle.Closes(f.candles) }

// Set stores a column, replacing any previous column with the same name while
// keeping its position in the column order.
func (f *Frame) Set(name string, values []float64) error {
	if len(values) != len(f.candles) {
		return fmt.Errorf("%w: %s has %d values, series has %d", ErrLengthMismatch, name, len(values), len(f.candles))
	}
	if _, ok := f.cols[name]; !ok {
		f.names = append(f.names, name)
	}
	f.cols[name] = append([]float64(nil), values...)
	return nil
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	values, ok := f.cols[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return append([]float64(nil), values...), nil
}

// Value returns a single cell; NaN when the column does not exist.
func (f *Frame) Value(name string, i int) float64 {
	values, ok := f.cols[name]
	if !ok || i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Columns lists column names in insertion order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.names...)
}

// SetSignal stores the Signal column.
func (f *Frame) SetSignal(signal []int) error {
	values := make([]float64, len(signal))
	for i, s := range signal {
		if s != 0 && s != 1 {
			return fmt.Errorf("%w: got %d at index %d", ErrInvalidSignal, s, i)
		}
		values[i] = float64(s)
	}
	return f.Set(SignalColumn, values)
}

// Signal returns the Signal column as flat/long states.
func (f *Frame) Signal() ([]int, error) {
	values, ok := f.cols[SignalColumn]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, SignalColumn)
	}
	out := make([]int, len(values))
	for i, v := range values {
		switch v {
		case 0:
			out[i] = 0
		case 1:
			out[i] = 1
		default:
			return nil, fmt.Errorf("%w: got %v at index %d", ErrInvalidSignal, v, i)
		}
	}
	return out, nil
}
