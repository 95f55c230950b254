package ingest

import (
	"context"
	"fmt"
	"time"

	"replaysim/config"
	"replaysim/internal/replay/pricepath"
	"replaysim/internal/replay/series"
	"replaysim/pkg/bybit"
	"replaysim/pkg/storage/postgres"

	"go.uber.org/zap"
)

const (
	maxConcurrentSymbols = 5
	restPageSize         = 1000
	dbTimeout            = 10 * time.Second
)

// Backfiller pulls historical klines over REST, stores them as candles,
// and generates the interpolated tick runs replay sessions step through.
type Backfiller struct {
	cfg    *config.Config
	rest   *bybit.RESTClient
	db     *postgres.PostgresClient
	gen    *pricepath.Generator
	logger *zap.Logger
}

func NewBackfiller(cfg *config.Config, rest *bybit.RESTClient, db *postgres.PostgresClient,
	gen *pricepath.Generator, logger *zap.Logger) *Backfiller {
	return &Backfiller{
		cfg:    cfg,
		rest:   rest,
		db:     db,
		gen:    gen,
		logger: logger,
	}
}

// Run backfills every configured symbol concurrently and blocks until
// all of them finish. Per-symbol failures are logged and skipped so one
// bad symbol cannot starve the rest.
func (b *Backfiller) Run(ctx context.Context) error {
	meta, err := bybit.ParseKlineInterval(b.cfg.Fetch.Interval)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	symbols := b.cfg.Fetch.Symbols
	if len(symbols) == 0 {
		reqCtx, cancel := context.WithTimeout(ctx, b.cfg.Bybit.REST.Timeout)
		symbols, err = b.rest.GetUSDTSymbols(reqCtx, b.cfg.Fetch.Category)
		cancel()
		if err != nil {
			return fmt.Errorf("backfill: discover symbols: %w", err)
		}
		b.logger.Info("discovered symbols", zap.Int("count", len(symbols)))
	}

	sem := make(chan struct{}, maxConcurrentSymbols)
	done := make(chan struct{}, len(symbols))

	for _, symbol := range symbols {
		symbol := symbol // capture
		sem <- struct{}{}

		go func() {
			defer func() { <-sem }()
			defer func() { done <- struct{}{} }()

			if err := b.backfillSymbol(ctx, symbol, meta); err != nil {
				b.logger.Warn("finished with errors for symbol",
					zap.String("symbol", symbol), zap.Error(err))
				return
			}
			b.logger.Info("completed successfully for symbol", zap.String("symbol", symbol))
		}()
	}

	for range symbols {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// backfillSymbol pages REST klines for one symbol from either the
// newest stored candle or the configured lookback horizon, whichever
// is later, and writes candles plus their tick runs.
func (b *Backfiller) backfillSymbol(ctx context.Context, symbol string, meta bybit.KlineIntervalMeta) error {
	end := time.Now().UTC()
	start := end.Add(-b.cfg.Fetch.Lookback)

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	latest, ok, err := b.db.LatestCandleStart(dbCtx, symbol, meta.DBValue)
	cancel()
	if err != nil {
		return fmt.Errorf("latest candle: %w", err)
	}
	if ok && latest.After(start) {
		start = latest.Add(meta.Duration())
	}

	page := time.Duration(restPageSize) * meta.Duration()
	for cursor := start; cursor.Before(end); cursor = cursor.Add(page) {
		pageEnd := cursor.Add(page)
		if pageEnd.After(end) {
			pageEnd = end
		}

		reqCtx, cancel := context.WithTimeout(ctx, b.cfg.Bybit.REST.Timeout)
		klines, err := b.rest.GetKlines(reqCtx, b.cfg.Fetch.Category, symbol, meta, cursor, pageEnd)
		cancel()
		if err != nil {
			return fmt.Errorf("fetch klines: %w", err)
		}
		if len(klines) == 0 {
			continue
		}

		records := make([]*postgres.CandleRecord, 0, len(klines))
		for _, k := range klines {
			records = append(records, postgres.ToCandleRecord(symbol, k))
		}

		dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
		inserted, err := b.db.InsertCandles(dbCtx, records)
		cancel()
		if err != nil {
			return fmt.Errorf("insert candles: %w", err)
		}
		b.logger.Info("stored candles",
			zap.String("symbol", symbol),
			zap.Int("fetched", len(klines)),
			zap.Int64("inserted", inserted))

		for _, k := range klines {
			if err := b.EnsureTicks(ctx, symbol, meta, k); err != nil {
				b.logger.Warn("failed to generate ticks",
					zap.String("symbol", symbol),
					zap.Time("candle", k.Start),
					zap.Error(err))
			}
		}
	}
	return nil
}

// EnsureTicks generates and stores the tick run of one candle unless
// the candle already has one.
func (b *Backfiller) EnsureTicks(ctx context.Context, symbol string, meta bybit.KlineIntervalMeta, k bybit.Kline) error {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	exists, err := b.db.HasTicks(dbCtx, symbol, meta.DBValue, k.Start)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	candle := series.Candle{
		Start:  k.Start,
		Open:   k.Open,
		High:   k.High,
		Low:    k.Low,
		Close:  k.Close,
		Volume: k.Volume,
	}
	ticks, err := series.BuildTicks(b.gen, candle, meta.Duration(), b.cfg.Replay.TickCount)
	if err != nil {
		return err
	}

	records := make([]*postgres.TickRecord, 0, len(ticks))
	for _, t := range ticks {
		records = append(records, &postgres.TickRecord{
			Symbol:      symbol,
			Interval:    meta.DBValue,
			CandleStart: k.Start,
			TickIndex:   t.Index,
			Time:        t.Time,
			Price:       t.Price,
			Open:        t.Open,
			High:        t.High,
			Low:         t.Low,
			Final:       t.Final,
		})
	}
	_, err = b.db.InsertTicks(dbCtx, records)
	return err
}
