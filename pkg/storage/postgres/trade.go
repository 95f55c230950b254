package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertTrade records a freshly opened position.
func (p *PostgresClient) InsertTrade(ctx context.Context, record *TradeRecord) error {
	return p.DB.WithContext(ctx).Create(record).Error
}

// CloseTrade completes a trade row in place with its exit fields.
func (p *PostgresClient) CloseTrade(ctx context.Context, id uuid.UUID, exitPrice float64, exitTime time.Time, reason string, pnl float64) error {
	tx := p.DB.WithContext(ctx).
		Model(&TradeRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"exit_price":  exitPrice,
			"exit_time":   exitTime,
			"exit_reason": reason,
			"pnl":         pnl,
		})

	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("no trade row for id=%s", id)
	}
	return nil
}

// ListOpenTrades returns the session's trades that have not closed
// yet, in entry order. These are what a resumed session rehydrates
// into its ledger.
func (p *PostgresClient) ListOpenTrades(ctx context.Context, sessionID uuid.UUID) ([]TradeRecord, error) {
	var records []TradeRecord
	err := p.DB.WithContext(ctx).
		Where("session_id = ? AND exit_time IS NULL", sessionID).
		Order("entry_time asc").
		Find(&records).Error

	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListTrades returns every trade of a session in entry order.
func (p *PostgresClient) ListTrades(ctx context.Context, sessionID uuid.UUID) ([]TradeRecord, error) {
	var records []TradeRecord
	err := p.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("entry_time asc").
		Find(&records).Error

	if err != nil {
		return nil, err
	}
	return records, nil
}
