package postgres

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

// InsertTicks bulk-inserts a generated tick run, skipping ticks that
// already exist for the same candle.
func (p *PostgresClient) InsertTicks(ctx context.Context, records []*TickRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"},
			{Name: "interval"},
			{Name: "candle_start"},
			{Name: "tick_index"},
		},
		DoNothing: true,
	}).CreateInBatches(records, 500)

	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// GetTicks returns the stored tick run of one candle in tick order.
// An empty result is not an error: the candle simply has no tick data.
func (p *PostgresClient) GetTicks(ctx context.Context, symbol, interval string, candleStart time.Time) ([]TickRecord, error) {
	var ticks []TickRecord
	err := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND candle_start = ?", symbol, interval, candleStart).
		Order("tick_index asc").
		Find(&ticks).Error

	if err != nil {
		return nil, err
	}
	return ticks, nil
}

// HasTicks reports whether any tick run exists for (symbol, interval)
// at or after from, letting the backfill skip regeneration.
func (p *PostgresClient) HasTicks(ctx context.Context, symbol, interval string, candleStart time.Time) (bool, error) {
	var count int64
	err := p.DB.WithContext(ctx).
		Model(&TickRecord{}).
		Where("symbol = ? AND interval = ? AND candle_start = ?", symbol, interval, candleStart).
		Count(&count).Error

	if err != nil {
		return false, err
	}
	return count > 0, nil
}
