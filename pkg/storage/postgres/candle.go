package postgres

import (
	"context"
	"time"

	"replaysim/pkg/bybit"

	"gorm.io/gorm/clause"
)

// InsertCandles bulk-inserts candle rows, silently skipping rows that
// already exist for the same (symbol, interval, start). Returns the
// number of rows actually written.
func (p *PostgresClient) InsertCandles(ctx context.Context, records []*CandleRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "interval"},
			{Name: "start"},
		},
		DoNothing: true,
	}).CreateInBatches(records, 500)

	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// GetCandles returns candles for (symbol, interval) starting at or
// after from, in ascending time order.
func (p *PostgresClient) GetCandles(ctx context.Context, symbol, interval string, from time.Time, limit, offset int) ([]CandleRecord, error) {
	var candles []CandleRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND start >= ?", symbol, interval, from).
		Order("start asc").
		Limit(limit).
		Offset(offset).
		Find(&candles).Error

	if err != nil {
		return nil, err
	}
	return candles, nil
}

// LatestCandleStart returns the start of the newest stored candle for
// (symbol, interval); ok is false when none exist yet.
func (p *PostgresClient) LatestCandleStart(ctx context.Context, symbol, interval string) (start time.Time, ok bool, err error) {
	var candle CandleRecord
	res := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ?", symbol, interval).
		Order("start desc").
		Limit(1).
		Find(&candle)

	if res.Error != nil {
		return time.Time{}, false, res.Error
	}
	if res.RowsAffected == 0 {
		return time.Time{}, false, nil
	}
	return candle.Start, true, nil
}

// ToCandleRecord converts a Bybit kline into a candle row.
func ToCandleRecord(symbol string, k bybit.Kline) *CandleRecord {
	return &CandleRecord{
		Symbol:   symbol,
		Interval: k.Interval,
		Start:    k.Start,
		End:      k.End,
		Open:     k.Open,
		High:     k.High,
		Low:      k.Low,
		Close:    k.Close,
		Volume:   k.Volume,
	}
}
