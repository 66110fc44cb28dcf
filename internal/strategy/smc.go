package strategy

import (
	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/indicator"
	"github.com/amirphl/simple-backtester/internal/series"
)

// OrderBlock is the price range of the last opposite-colored candle before a
// break of structure. A block is used at most once.
type OrderBlock struct {
	Top      float64 `json:"top"`
	Bottom   float64 `json:"bottom"`
	Bullish  bool    `json:"bullish"`
	Consumed bool    `json:"consumed"`
	// Source is the index of the candle the range was taken from and
	// CreatedAt the index of the bar whose close broke structure.
	Source    int `json:"source"`
	CreatedAt int `json:"created_at"`
}

// Touched reports whether c re-enters the block. A bullish block needs the
// low to reach the top without closing below the bottom; a bearish block
// needs the high to reach the bottom without closing above the top.
func (ob *OrderBlock) Touched(c candle.Candle) bool {
	if ob.Bullish {
		return c.Low <= ob.Top && c.Close >= ob.Bottom
	}
	return c.High >= ob.Bottom && c.Close <= ob.Top
}

func (ob *OrderBlock) position() Position {
	if ob.Bullish {
		return Buy
	}
	return Sell
}

// Mitigate checks every active block in registration order and consumes each
// one that c touches. The returned instruction is the polarity of the first
// block consumed, or Hold when none is touched.
func Mitigate(blocks []OrderBlock, c candle.Candle) Position {
	out := Hold
	for i := range blocks {
		ob := &blocks[i]
		if ob.Consumed || !ob.Touched(c) {
			continue
		}
		ob.Consumed = true
		if out == Hold {
			out = ob.position()
		}
	}
	return out
}

// SMC is a smart-money-concept strategy. It tracks confirmed swing points,
// registers an order block on every fresh break of structure and trades the
// first return of price into each block: bullish blocks open a long, bearish
// blocks flatten it.
type SMC struct {
	// Window is the centered swing window; a swing is confirmed Window/2 bars
	// after it prints.
	Window int
	// Start is the first bar evaluated.
	Start int
}

func NewSMC() *SMC {
	return &SMC{Window: 5, Start: 5}
}

func (s *SMC) Name() string { return SMCName }

func (s *SMC) WarmupPeriod() int { return s.Start }

// Scan runs the bar-by-bar state machine and returns the raw instructions
// together with every block registered along the way.
func (s *SMC) Scan(candles []candle.Candle) ([]Position, []OrderBlock) {
	n := len(candles)
	raw := make([]Position, n)
	sw := indicator.DetectSwings(candle.Highs(candles), candle.Lows(candles), s.Window)

	var (
		swingHigh, swingLow       float64
		swingHighIdx, swingLowIdx int
		blocks                    []OrderBlock
	)

	start := max(s.Start, 1)
	for i := start; i < n; i++ {
		if p, ok := sw.ConfirmedHigh(i); ok {
			swingHigh, swingHighIdx = candles[p].High, p
		}
		if p, ok := sw.ConfirmedLow(i); ok {
			swingLow, swingLowIdx = candles[p].Low, p
		}

		cur, prevClose := candles[i], candles[i-1].Close

		if swingHigh > 0 && cur.Close > swingHigh && prevClose <= swingHigh {
			if j := lastIndex(candles, swingLowIdx, i, (*candle.Candle).IsBearish); j >= 0 {
				blocks = append(blocks, newBlock(candles[j], true, j, i))
			}
		}
		if swingLow > 0 && cur.Close < swingLow && prevClose >= swingLow {
			if j := lastIndex(candles, swingHighIdx, i, (*candle.Candle).IsBullish); j >= 0 {
				blocks = append(blocks, newBlock(candles[j], false, j, i))
			}
		}

		raw[i] = Mitigate(blocks, cur)
	}
	return raw, blocks
}

func (s *SMC) Apply(f *series.Frame) (*series.Frame, error) {
	raw, _ := s.Scan(f.Candles())
	sw := indicator.DetectSwings(f.Highs(), f.Lows(), s.Window)

	return annotate(f, []column{
		{"Swing_High", sw.WindowHigh},
		{"Swing_Low", sw.WindowLow},
		{"Is_Swing_High", indicator.BoolFloats(sw.IsHigh)},
		{"Is_Swing_Low", indicator.BoolFloats(sw.IsLow)},
	}, Latch(raw))
}

func newBlock(c candle.Candle, bullish bool, source, created int) OrderBlock {
	return OrderBlock{Top: c.High, Bottom: c.Low, Bullish: bullish, Source: source, CreatedAt: created}
}

// lastIndex returns the last index in [from, to) whose candle matches, or -1.
func lastIndex(candles []candle.Candle, from, to int, match func(*candle.Candle) bool) int {
	for j := to - 1; j >= from; j-- {
		if match(&candles[j]) {
			return j
		}
	}
	return -1
}
