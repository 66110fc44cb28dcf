// Package backtest simulates a single-asset long/flat position over a candle
// series driven by a Signal column and reports the equity curve, the trade
// ledger and summary statistics.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/series"
	"github.com/amirphl/simple-backtester/internal/utils"
)

var ErrInvalidConfig = errors.New("invalid backtest config")

const DefaultInitialCapital = 1000.0

// Config is the simulator configuration. StopLossPct and TakeProfitPct are
// fractions (0.05 = 5%); zero disables the rule.
type Config struct {
	InitialCapital float64 `json:"initial_capital"`
	StopLossPct    float64 `json:"stop_loss_pct"`
	TakeProfitPct  float64 `json:"take_profit_pct"`
}

func DefaultConfig() Config {
	return Config{InitialCapital: DefaultInitialCapital}
}

func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("%w: initial capital must be positive, got %v", ErrInvalidConfig, c.InitialCapital)
	}
	if !(c.StopLossPct >= 0 && c.StopLossPct < 1) {
		return fmt.Errorf("%w: stop loss must be in [0, 1), got %v", ErrInvalidConfig, c.StopLossPct)
	}
	if !(c.TakeProfitPct >= 0) || math.IsInf(c.TakeProfitPct, 0) {
		return fmt.Errorf("%w: take profit must be non-negative, got %v", ErrInvalidConfig, c.TakeProfitPct)
	}
	return nil
}

type Side int

const (
	Flat Side = iota
	Long
)

func (s Side) String() string {
	if s == Long {
		return "long"
	}
	return "flat"
}

type TradeType string

const (
	TradeBuy  TradeType = "Buy"
	TradeSell TradeType = "Sell"
)

// Exit and entry reasons recorded in the ledger.
const (
	ReasonStopLoss   = "Stop Loss"
	ReasonTakeProfit = "Take Profit"
	ReasonSignalSell = "Signal Sell"
	ReasonSignalBuy  = "Signal Buy"
)

// Trade is one ledger row. PnLPct is zero for buys.
type Trade struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         TradeType `json:"type"`
	Price        float64   `json:"price"`
	Reason       string    `json:"reason"`
	PnLPct       float64   `json:"pnl_pct"`
	BalanceAfter float64   `json:"balance_after"`
	// EntryPrice and EntryTime describe the leg a sell closes.
	EntryPrice float64    `json:"entry_price,omitempty"`
	EntryTime  *time.Time `json:"entry_time,omitempty"`
}

// State is the simulator state carried from one bar to the next.
type State struct {
	Side        Side
	EntryPrice  float64
	EntryTime   time.Time
	EntryEquity float64
	Equity      float64
	LastClose   float64
}

// NewState returns a flat state seeded with the initial capital and the first
// bar's close.
func NewState(capital float64, first candle.Candle) State {
	return State{Side: Flat, Equity: capital, LastClose: first.Close}
}

// Step advances the simulation by one bar. prevSignal is the Signal of the
// previous bar, so an instruction raised at bar i acts at bar i+1.
//
// While long, exits are checked in order: stop loss, take profit, then a flat
// signal. Stop loss and take profit fill exactly at their trigger price. When
// flat, a long signal enters at the bar's close. Any other bar marks a long
// position to market close to close.
func Step(s State, bar candle.Candle, prevSignal int, cfg Config) (State, *Trade) {
	next := s
	next.LastClose = bar.Close

	if s.Side == Long {
		change := (bar.Close - s.EntryPrice) / s.EntryPrice
		var exitPrice float64
		var reason string
		switch {
		case cfg.StopLossPct > 0 && change <= -cfg.StopLossPct:
			exitPrice, reason = s.EntryPrice*(1-cfg.StopLossPct), ReasonStopLoss
		case cfg.TakeProfitPct > 0 && change >= cfg.TakeProfitPct:
			exitPrice, reason = s.EntryPrice*(1+cfg.TakeProfitPct), ReasonTakeProfit
		case prevSignal == 0:
			exitPrice, reason = bar.Close, ReasonSignalSell
		}
		if reason != "" {
			pnlPct := (exitPrice - s.EntryPrice) / s.EntryPrice * 100
			entryTime := s.EntryTime
			balance := s.EntryEquity * (1 + pnlPct/100)
			trade := &Trade{
				Timestamp:    bar.Timestamp,
				Type:         TradeSell,
				Price:        exitPrice,
				Reason:       reason,
				PnLPct:       pnlPct,
				BalanceAfter: balance,
				EntryPrice:   s.EntryPrice,
				EntryTime:    &entryTime,
			}
			next.Side = Flat
			next.Equity = balance
			next.EntryPrice, next.EntryEquity, next.EntryTime = 0, 0, time.Time{}
			return next, trade
		}
	}

	if s.Side == Flat && prevSignal == 1 {
		next.Side = Long
		next.EntryPrice = bar.Close
		next.EntryTime = bar.Timestamp
		next.EntryEquity = s.Equity
		return next, &Trade{
			Timestamp:    bar.Timestamp,
			Type:         TradeBuy,
			Price:        bar.Close,
			Reason:       ReasonSignalBuy,
			BalanceAfter: s.Equity,
		}
	}

	if s.Side == Long {
		next.Equity = s.Equity * (1 + (bar.Close-s.LastClose)/s.LastClose)
	}
	return next, nil
}

// EquityPoint is the equity at one bar.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Result is the outcome of one simulation run.
type Result struct {
	RunID          uuid.UUID     `json:"run_id"`
	Strategy       string        `json:"strategy,omitempty"`
	Symbol         string        `json:"symbol,omitempty"`
	Timeframe      string        `json:"timeframe,omitempty"`
	Config         Config        `json:"config"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	FinalEquity    float64       `json:"final_equity"`
	TotalReturnPct float64       `json:"total_return_pct"`
	MaxDrawdownPct float64       `json:"max_drawdown_pct"`
	WinRatePct     float64       `json:"win_rate_pct"`
	OpenPosition   bool          `json:"open_position"`
	Stats          Stats         `json:"stats"`
	TradeLog       []Trade       `json:"trade_log"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	// Frame is the input series annotated with Equity_Curve and Drawdown.
	Frame *series.Frame `json:"-"`
}

// Run simulates the whole frame. The frame must carry a Signal column; it is
// not modified.
func Run(f *series.Frame, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if f == nil || f.Len() == 0 {
		return nil, candle.ErrEmptySeries
	}
	signal, err := f.Signal()
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	n := f.Len()
	equity := make([]float64, n)
	trades := []Trade{}

	first := f.Candle(0)
	state := NewState(cfg.InitialCapital, first)
	equity[0] = state.Equity
	for i := 1; i < n; i++ {
		var trade *Trade
		state, trade = Step(state, f.Candle(i), signal[i-1], cfg)
		if trade != nil {
			trades = append(trades, *trade)
		}
		equity[i] = state.Equity
	}

	drawdown := Drawdown(equity)
	annotated := f.Clone()
	if err := annotated.Set(series.EquityColumn, equity); err != nil {
		return nil, err
	}
	if err := annotated.Set(series.DrawdownColumn, drawdown); err != nil {
		return nil, err
	}

	curve := make([]EquityPoint, n)
	for i := range equity {
		curve[i] = EquityPoint{Timestamp: f.Candle(i).Timestamp, Value: equity[i]}
	}

	last := f.Candle(n - 1)
	stats := CalculateStats(trades)
	res := &Result{
		RunID:          uuid.New(),
		Symbol:         first.Symbol,
		Timeframe:      first.Timeframe,
		Config:         cfg,
		StartTime:      first.Timestamp,
		EndTime:        last.Timestamp,
		FinalEquity:    equity[n-1],
		TotalReturnPct: (equity[n-1]/cfg.InitialCapital - 1) * 100,
		MaxDrawdownPct: MaxDrawdown(drawdown) * 100,
		WinRatePct:     stats.WinRatePct,
		OpenPosition:   state.Side == Long,
		Stats:          stats,
		TradeLog:       trades,
		EquityCurve:    curve,
		Frame:          annotated,
	}

	utils.GetLogger().Debugf("Backtest | run %s: %d bars, %d trades, return %.2f%%, max drawdown %.2f%%",
		res.RunID, n, len(trades), res.TotalReturnPct, res.MaxDrawdownPct)
	return res, nil
}

// LastTrades returns up to n of the most recent ledger rows.
func (r *Result) LastTrades(n int) []Trade {
	if n <= 0 || len(r.TradeLog) == 0 {
		return nil
	}
	if n > len(r.TradeLog) {
		n = len(r.TradeLog)
	}
	return append([]Trade(nil), r.TradeLog[len(r.TradeLog)-n:]...)
}
