package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/simple-backtester/internal/backtest"
	"github.com/amirphl/simple-backtester/internal/config"
	"github.com/amirphl/simple-backtester/internal/db"
	"github.com/amirphl/simple-backtester/internal/marketdata"
	"github.com/amirphl/simple-backtester/internal/notifier"
	"github.com/amirphl/simple-backtester/internal/series"
	"github.com/amirphl/simple-backtester/internal/strategy"
	"github.com/amirphl/simple-backtester/internal/utils"
)

func main() {
	logger := utils.GetLogger()
	defer logger.Sync()

	cfg, err := config.Load(os.Args[0], os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Errorf("Backtest failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger := utils.GetLogger()

	store, err := db.Open(ctx, cfg.DBConnStr)
	if err != nil {
		return fmt.Errorf("opening candle store: %w", err)
	}
	defer store.Close()

	fetcher, err := marketdata.New(cfg.Source, cfg.MarketData())
	if err != nil {
		return err
	}
	loader := marketdata.NewLoader(store, fetcher)
	loader.FillGaps = cfg.FillGaps
	loader.Refresh = cfg.Refresh

	strats, err := strategy.NewMany(cfg.Strategies)
	if err != nil {
		return err
	}

	symbols := []string(cfg.Symbols)
	if cfg.TopSymbols > 0 {
		binance, ok := fetcher.(*marketdata.Binance)
		if !ok {
			return fmt.Errorf("top symbols are only available from %s", marketdata.SourceBinance)
		}
		if symbols, err = binance.TopSymbols(ctx, cfg.TopSymbols); err != nil {
			return fmt.Errorf("fetching top symbols: %w", err)
		}
		logger.Infof("Backtester | Top %d symbols: %v", cfg.TopSymbols, symbols)
	}

	jobs, err := buildJobs(ctx, cfg, loader, symbols, strats)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return marketdata.ErrNoData
	}

	results, err := backtest.RunMany(ctx, jobs, cfg.Parallelism)
	if err != nil {
		return err
	}
	return report(ctx, cfg, results)
}

func buildJobs(ctx context.Context, cfg config.Config, loader *marketdata.Loader, symbols []string, strats []strategy.Strategy) ([]backtest.Job, error) {
	logger := utils.GetLogger()
	var jobs []backtest.Job
	for _, symbol := range symbols {
		candles, err := loader.Load(ctx, symbol, cfg.Timeframe, cfg.From.Time, cfg.To.Time)
		if errors.Is(err, marketdata.ErrNoData) {
			logger.Warnf("Backtester | No candles for %s %s, skipping", symbol, cfg.Timeframe)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", symbol, err)
		}
		frame, err := series.New(candles)
		if err != nil {
			return nil, fmt.Errorf("building series for %s: %w", symbol, err)
		}
		logger.Infof("Backtester | Loaded %d candles for %s %s", frame.Len(), symbol, cfg.Timeframe)

		for _, s := range strats {
			if frame.Len() <= s.WarmupPeriod() {
				logger.Warnf("Backtester | %s has %d candles, %s needs more than %d", symbol, frame.Len(), s.Name(), s.WarmupPeriod())
			}
			jobs = append(jobs, backtest.Job{
				Label:     marketdata.NormalizeSymbol(symbol),
				Frame:     frame,
				Generator: s,
				Config:    cfg.Backtest(),
			})
		}
	}
	return jobs, nil
}

func report(ctx context.Context, cfg config.Config, results []backtest.JobResult) error {
	logger := utils.GetLogger()
	notify := notifier.New(cfg.TelegramToken, cfg.TelegramChatID, cfg.NotificationRetries, cfg.NotificationDelay)

	failed := 0
	for _, jr := range results {
		if jr.Err != nil {
			failed++
			logger.Errorf("Backtester | %s %s: %v", jr.Label, jr.Strategy, jr.Err)
			continue
		}
		fmt.Println(jr.Result.Summary())
		if cfg.OutputDir != "" {
			files, err := jr.Result.Save(cfg.OutputDir)
			if err != nil {
				logger.Errorf("Backtester | Saving %s %s: %v", jr.Label, jr.Strategy, err)
			} else {
				logger.Infof("Backtester | Wrote %v", files)
			}
		}
		if err := notify.SendWithRetry(ctx, notifier.FormatResult(jr.Result)); err != nil {
			logger.Warnf("Backtester | Notification failed: %v", err)
		}
	}

	if len(results) > 1 {
		ov := backtest.Summarize(results)
		fmt.Println(ov.String())
		if err := notify.SendWithRetry(ctx, notifier.FormatBatch(ov)); err != nil {
			logger.Warnf("Backtester | Notification failed: %v", err)
		}
	}

	if failed == len(results) {
		return fmt.Errorf("all %d runs failed", failed)
	}
	return nil
}
