package marketdata

import (
	"context"
	"fmt"
	"time"

	"replaysim/internal/replay/series"
	"replaysim/pkg/bybit"
	"replaysim/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Store is the slice of the storage layer the loader needs: ordered
// candles and the optional tick run of each candle.
type Store interface {
	GetCandles(ctx context.Context, symbol, interval string, from time.Time, limit, offset int) ([]postgres.CandleRecord, error)
	GetTicks(ctx context.Context, symbol, interval string, candleStart time.Time) ([]postgres.TickRecord, error)
}

// Loader assembles an immutable replay series from stored market data.
type Loader struct {
	store  Store
	logger *zap.Logger
}

func NewLoader(store Store, logger *zap.Logger) *Loader {
	return &Loader{store: store, logger: logger}
}

// LoadSeries reads up to limit candles of (symbol, interval) starting
// at from, pairs each with its stored tick run when one exists, and
// returns them as a series. Candles without ticks stay tickless and
// replay as one-step reveals.
func (l *Loader) LoadSeries(ctx context.Context, symbol, interval string, from time.Time, limit int) (*series.Series, error) {
	meta, err := bybit.ParseDBInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}

	records, err := l.store.GetCandles(ctx, symbol, interval, from, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}

	candles := make([]series.Candle, len(records))
	ticks := make([][]series.Tick, len(records))
	anyTicks := false

	for i, rec := range records {
		candles[i] = series.Candle{
			Start:  rec.Start,
			Open:   rec.Open,
			High:   rec.High,
			Low:    rec.Low,
			Close:  rec.Close,
			Volume: rec.Volume,
		}

		tickRecords, err := l.store.GetTicks(ctx, symbol, interval, rec.Start)
		if err != nil {
			return nil, fmt.Errorf("load ticks for candle %s: %w", rec.Start.Format(time.RFC3339), err)
		}
		if len(tickRecords) == 0 {
			continue
		}

		run := make([]series.Tick, len(tickRecords))
		for j, tr := range tickRecords {
			run[j] = series.Tick{
				Index: tr.TickIndex,
				Time:  tr.Time,
				Price: tr.Price,
				Open:  tr.Open,
				High:  tr.High,
				Low:   tr.Low,
				Final: tr.Final,
			}
		}
		ticks[i] = run
		anyTicks = true
	}

	if !anyTicks {
		ticks = nil
	}

	l.logger.Info("loaded replay series",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("candles", len(candles)),
		zap.Bool("ticks", anyTicks))

	return series.New(symbol, meta.Duration(), candles, ticks)
}
