package main

import (
	"context"
	"os/signal"
	"syscall"

	"replaysim/config"
	"replaysim/internal/ingest"
	"replaysim/internal/replay/pricepath"
	"replaysim/logger"
	"replaysim/pkg/bybit"
	"replaysim/pkg/storage/postgres"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL client and run migrations
	db, err := postgres.Initialize(cfg.Postgres, cfg.Log.Environment, true)
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer db.Close()

	rest := bybit.NewRESTClient(cfg.Bybit.REST.BaseURL, cfg.Bybit.REST.Timeout)
	backfiller := ingest.NewBackfiller(cfg, rest, db, pricepath.New(), log)

	if err := backfiller.Run(ctx); err != nil {
		log.Fatal("backfill failed", zap.Error(err))
	}
	log.Info("backfill complete",
		zap.String("interval", cfg.Fetch.Interval),
		zap.Duration("lookback", cfg.Fetch.Lookback))

	if !cfg.Fetch.Follow {
		return
	}

	// Follow mode keeps the candle table current until interrupted.
	symbols := cfg.Fetch.Symbols
	if len(symbols) == 0 {
		symbols, err = rest.GetUSDTSymbols(ctx, cfg.Fetch.Category)
		if err != nil {
			log.Fatal("failed to discover symbols", zap.Error(err))
		}
	}

	ws := bybit.NewWSClient(cfg.Bybit.WS.URL, log)
	follower := ingest.NewFollower(backfiller, ws, log)
	if err := follower.Follow(ctx, symbols); err != nil && ctx.Err() == nil {
		log.Fatal("stream failed", zap.Error(err))
	}
}
