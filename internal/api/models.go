package api

import (
	"time"

	"github.com/amirphl/simple-backtester/internal/backtest"
	"github.com/amirphl/simple-backtester/internal/candle"
)

// BacktestRequest runs strategies over candles loaded from the market data
// source. Percent fields use percent units (5 = 5%).
type BacktestRequest struct {
	Symbol            string   `json:"symbol" binding:"required"`
	Timeframe         string   `json:"timeframe" binding:"required"`
	From              string   `json:"from" binding:"required"`
	To                string   `json:"to" binding:"required"`
	Strategies        []string `json:"strategies" binding:"required,min=1"`
	InitialCapital    float64  `json:"initial_capital"`
	StopLossPercent   float64  `json:"stop_loss_percent"`
	TakeProfitPercent float64  `json:"take_profit_percent"`
	IncludeEquity     bool     `json:"include_equity"`
}

// CandlesBacktestRequest runs strategies over caller supplied candles.
type CandlesBacktestRequest struct {
	Candles           []candle.Candle `json:"candles" binding:"required,min=1"`
	Strategies        []string        `json:"strategies" binding:"required,min=1"`
	InitialCapital    float64         `json:"initial_capital"`
	StopLossPercent   float64         `json:"stop_loss_percent"`
	TakeProfitPercent float64         `json:"take_profit_percent"`
	IncludeEquity     bool            `json:"include_equity"`
}

type BacktestResponse struct {
	Symbol    string            `json:"symbol,omitempty"`
	Timeframe string            `json:"timeframe,omitempty"`
	Bars      int               `json:"bars"`
	Runs      []RunResponse     `json:"runs"`
	Overview  backtest.Overview `json:"overview"`
}

// RunResponse is one strategy's result with money and percentages rounded to
// two decimals.
type RunResponse struct {
	RunID          string                 `json:"run_id,omitempty"`
	Strategy       string                 `json:"strategy"`
	StartTime      time.Time              `json:"start_time"`
	EndTime        time.Time              `json:"end_time"`
	FinalEquity    float64                `json:"final_equity"`
	TotalReturnPct float64                `json:"total_return_pct"`
	MaxDrawdownPct float64                `json:"max_drawdown_pct"`
	WinRatePct     float64                `json:"win_rate_pct"`
	OpenPosition   bool                   `json:"open_position"`
	Stats          backtest.Stats         `json:"stats"`
	Trades         []TradeResponse        `json:"trades"`
	EquityCurve    []backtest.EquityPoint `json:"equity_curve,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

type TradeResponse struct {
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
	Price        float64   `json:"price"`
	Reason       string    `json:"reason"`
	PnLPct       float64   `json:"pnl_pct"`
	BalanceAfter float64   `json:"balance_after"`
}

type StrategyInfo struct {
	Name         string `json:"name"`
	WarmupPeriod int    `json:"warmup_period"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newRunResponse(jr backtest.JobResult, includeEquity bool) RunResponse {
	out := RunResponse{Strategy: jr.Strategy, Trades: []TradeResponse{}}
	if jr.Err != nil || jr.Result == nil {
		if jr.Err != nil {
			out.Error = jr.Err.Error()
		}
		return out
	}

	r := jr.Result
	out.RunID = r.RunID.String()
	out.StartTime = r.StartTime
	out.EndTime = r.EndTime
	out.FinalEquity = backtest.Round(r.FinalEquity, 2)
	out.TotalReturnPct = backtest.Round(r.TotalReturnPct, 2)
	out.MaxDrawdownPct = backtest.Round(r.MaxDrawdownPct, 2)
	out.WinRatePct = backtest.Round(r.WinRatePct, 2)
	out.OpenPosition = r.OpenPosition
	out.Stats = r.Stats
	for _, t := range r.TradeLog {
		out.Trades = append(out.Trades, TradeResponse{
			Timestamp:    t.Timestamp,
			Type:         string(t.Type),
			Price:        backtest.RoundSignificant(t.Price, backtest.PriceDigits),
			Reason:       t.Reason,
			PnLPct:       backtest.Round(t.PnLPct, 2),
			BalanceAfter: backtest.Round(t.BalanceAfter, 2),
		})
	}
	if includeEquity {
		out.EquityCurve = r.EquityCurve
	}
	return out
}
