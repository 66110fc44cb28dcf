// Package strategy turns a candle series into a per-bar Signal column. Each
// generator computes its indicator columns, evaluates its entry and exit rules
// and collapses them into flat (0) or long (1) states.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/simple-backtester/internal/series"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the interface for all signal generators.
type Strategy interface {
	Name() string
	// Apply returns a copy of the frame with the strategy's indicator columns
	// and the Signal column. The input frame is not modified.
	Apply(f *series.Frame) (*series.Frame, error)
	// WarmupPeriod is the number of bars needed before every indicator the
	// strategy reads is defined.
	WarmupPeriod() int
}

// Position is a raw per-bar instruction before it is latched into a state.
type Position int8

const (
	Sell Position = -1
	Hold Position = 0
	Buy  Position = 1
)

func (p Position) String() string {
	switch p {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// Latch forward-fills raw instructions: Buy moves to long, Sell moves to flat
// and Hold keeps the previous state. Bars before the first instruction are flat.
func Latch(raw []Position) []int {
	out := make([]int, len(raw))
	state := 0
	for i, p := range raw {
		switch p {
		case Buy:
			state = 1
		case Sell:
			state = 0
		}
		out[i] = state
	}
	return out
}

type column struct {
	name   string
	values []float64
}

// annotate clones f, stores the columns in order and sets the latched signal.
func annotate(f *series.Frame, cols []column, signal []int) (*series.Frame, error) {
	out := f.Clone()
	for _, c := range cols {
		if err := out.Set(c.name, c.values); err != nil {
			return nil, err
		}
	}
	if err := out.SetSignal(signal); err != nil {
		return nil, err
	}
	return out, nil
}

// Registered strategy names.
const (
	SimpleMAName     = "simple_ma"
	BollingerRSIName = "bb_rsi"
	TrendEMAName     = "trend_ema"
	SupertrendName   = "supertrend"
	SMCName          = "smc"

	// All expands to every registered strategy.
	All = "all"
)

var registry = []struct {
	name string
	new  func() Strategy
}{
	{SimpleMAName, func() Strategy { return NewSimpleMA() }},
	{BollingerRSIName, func() Strategy { return NewBollingerRSI() }},
	{TrendEMAName, func() Strategy { return NewTrendEMA() }},
	{SupertrendName, func() Strategy { return NewSupertrend() }},
	{SMCName, func() Strategy { return NewSMC() }},
}

// Names lists registered strategies in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.name
	}
	return names
}

// New returns a strategy with default parameters.
func New(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, r := range registry {
		if r.name == key {
			return r.new(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownStrategy, name, strings.Join(Names(), ", "))
}

// NewMany resolves a list of names. "all" expands to every strategy and
// duplicates are dropped, keeping the first occurrence.
func NewMany(names []string) ([]Strategy, error) {
	var expanded []string
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), All) {
			expanded = append(expanded, Names()...)
			continue
		}
		expanded = append(expanded, n)
	}

	seen := make(map[string]bool)
	strats := []Strategy{}
	for _, n := range expanded {
		s, err := New(n)
		if err != nil {
			return nil, err
		}
		if seen[s.Name()] {
			continue
		}
		seen[s.Name()] = true
		strats = append(strats, s)
	}
	if len(strats) == 0 {
		return nil, fmt.Errorf("%w: no strategy given", ErrUnknownStrategy)
	}
	return strats, nil
}
