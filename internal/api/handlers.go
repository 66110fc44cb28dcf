// Package api exposes the backtester over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirphl/simple-backtester/internal/backtest"
	"github.com/amirphl/simple-backtester/internal/candle"
	"github.com/amirphl/simple-backtester/internal/config"
	"github.com/amirphl/simple-backtester/internal/marketdata"
	"github.com/amirphl/simple-backtester/internal/series"
	"github.com/amirphl/simple-backtester/internal/strategy"
	"github.com/amirphl/simple-backtester/internal/tfutils"
	"github.com/amirphl/simple-backtester/internal/utils"
)

// CandleLoader returns the candles of a symbol and timeframe in [start, end).
type CandleLoader interface {
	Load(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error)
}

// Handler serves the backtest endpoints.
type Handler struct {
	loader      CandleLoader
	parallelism int
	timeout     time.Duration
}

func NewHandler(loader CandleLoader, parallelism int, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Handler{loader: loader, parallelism: parallelism, timeout: timeout}
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListStrategies handles GET /api/v1/strategies
func (h *Handler) ListStrategies(c *gin.Context) {
	infos := []StrategyInfo{}
	for _, name := range strategy.Names() {
		s, err := strategy.New(name)
		if err != nil {
			continue
		}
		infos = append(infos, StrategyInfo{Name: s.Name(), WarmupPeriod: s.WarmupPeriod()})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": infos})
}

// RunBacktest handles POST /api/v1/backtest
func (h *Handler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if h.loader == nil {
		abortWithError(c, http.StatusServiceUnavailable, "NO_DATA_SOURCE", errors.New("no market data source configured"))
		return
	}
	if !tfutils.IsValidTimeframe(req.Timeframe) {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Errorf("unsupported timeframe %q", req.Timeframe))
		return
	}
	from, err := config.ParseDate(req.From)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	to, err := config.ParseDate(req.To)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if !to.After(from.Time) {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", errors.New("to must be after from"))
		return
	}
	strats, cfg, ok := resolveRun(c, req.Strategies, req.InitialCapital, req.StopLossPercent, req.TakeProfitPercent)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	candles, err := h.loader.Load(ctx, req.Symbol, req.Timeframe, from.Time, to.Time)
	if err != nil {
		switch {
		case errors.Is(err, marketdata.ErrNoData):
			abortWithError(c, http.StatusNotFound, "NO_DATA", err)
		case errors.Is(err, context.DeadlineExceeded):
			abortWithError(c, http.StatusGatewayTimeout, "TIMEOUT", err)
		default:
			abortWithError(c, http.StatusBadGateway, "DATA_FETCH_ERROR", err)
		}
		return
	}

	resp, status, code, err := h.run(ctx, candles, strats, cfg, req.IncludeEquity)
	if err != nil {
		abortWithError(c, status, code, err)
		return
	}
	resp.Symbol = marketdata.NormalizeSymbol(req.Symbol)
	resp.Timeframe = req.Timeframe
	c.JSON(http.StatusOK, resp)
}

// RunCandlesBacktest handles POST /api/v1/backtest/candles
func (h *Handler) RunCandlesBacktest(c *gin.Context) {
	var req CandlesBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	strats, cfg, ok := resolveRun(c, req.Strategies, req.InitialCapital, req.StopLossPercent, req.TakeProfitPercent)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp, status, code, err := h.run(ctx, req.Candles, strats, cfg, req.IncludeEquity)
	if err != nil {
		abortWithError(c, status, code, err)
		return
	}
	first := req.Candles[0]
	resp.Symbol = first.Symbol
	resp.Timeframe = first.Timeframe
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) run(ctx context.Context, candles []candle.Candle, strats []strategy.Strategy, cfg backtest.Config, includeEquity bool) (*BacktestResponse, int, string, error) {
	frame, err := series.New(candles)
	if err != nil {
		return nil, http.StatusUnprocessableEntity, "INVALID_SERIES", err
	}

	jobs := make([]backtest.Job, len(strats))
	for i, s := range strats {
		jobs[i] = backtest.Job{Label: s.Name(), Frame: frame, Generator: s, Config: cfg}
	}
	results, err := backtest.RunMany(ctx, jobs, h.parallelism)
	if err != nil {
		return nil, http.StatusGatewayTimeout, "TIMEOUT", err
	}

	resp := &BacktestResponse{Bars: frame.Len(), Overview: backtest.Summarize(results)}
	for _, jr := range results {
		resp.Runs = append(resp.Runs, newRunResponse(jr, includeEquity))
	}
	return resp, http.StatusOK, "", nil
}

// resolveRun builds the strategies and simulator config shared by both
// backtest endpoints. It writes the error response itself.
func resolveRun(c *gin.Context, names []string, capital, slPercent, tpPercent float64) ([]strategy.Strategy, backtest.Config, bool) {
	strats, err := strategy.NewMany(names)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "UNKNOWN_STRATEGY", err)
		return nil, backtest.Config{}, false
	}
	if capital == 0 {
		capital = backtest.DefaultInitialCapital
	}
	cfg := backtest.Config{
		InitialCapital: capital,
		StopLossPct:    slPercent / 100,
		TakeProfitPct:  tpPercent / 100,
	}
	if err := cfg.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_CONFIG", err)
		return nil, backtest.Config{}, false
	}
	return strats, cfg, true
}

func abortWithError(c *gin.Context, status int, code string, err error) {
	if status >= http.StatusInternalServerError {
		utils.GetLogger().Errorf("API | %s %s: %s: %v", c.Request.Method, c.Request.URL.Path, code, err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: err.Error()},
	})
}
