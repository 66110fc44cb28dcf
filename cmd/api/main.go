package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amirphl/simple-backtester/internal/api"
	"github.com/amirphl/simple-backtester/internal/config"
	"github.com/amirphl/simple-backtester/internal/db"
	"github.com/amirphl/simple-backtester/internal/marketdata"
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

	if os.Getenv("API_ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DBConnStr)
	if err != nil {
		logger.Fatalf("Failed to open candle store: %v", err)
	}
	defer store.Close()

	fetcher, err := marketdata.New(cfg.Source, cfg.MarketData())
	if err != nil {
		logger.Fatalf("Failed to create %s fetcher: %v", cfg.Source, err)
	}
	loader := marketdata.NewLoader(store, fetcher)
	loader.FillGaps = cfg.FillGaps

	h := api.NewHandler(loader, cfg.Parallelism, 0)
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.APIPort),
		Handler:           api.NewHTTPHandler(h, corsOrigins()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("API | Listening on %s (source %s)", srv.Addr, fetcher.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("API | Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("API | Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API | Forced shutdown: %v", err)
	}
}

// corsOrigins reads CORS_ORIGINS as a comma-separated list. Empty allows all.
func corsOrigins() []string {
	var origins []string
	for o := range strings.SplitSeq(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
