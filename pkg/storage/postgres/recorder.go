package postgres

import (
	"context"

	"replaysim/internal/replay/ledger"

	"github.com/google/uuid"
)

// SessionRecorder is the database-backed session.Recorder: it mirrors
// ledger mutations into the trade and session tables.
type SessionRecorder struct {
	client *PostgresClient
}

func NewSessionRecorder(client *PostgresClient) *SessionRecorder {
	return &SessionRecorder{client: client}
}

func (r *SessionRecorder) RecordOpen(ctx context.Context, sessionID uuid.UUID, p ledger.Position) error {
	return r.client.InsertTrade(ctx, &TradeRecord{
		ID:         p.ID,
		SessionID:  sessionID,
		Side:       string(p.Side),
		EntryPrice: p.EntryPrice,
		Size:       p.Size,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		EntryTime:  p.EntryTime,
	})
}

func (r *SessionRecorder) RecordClose(ctx context.Context, _ uuid.UUID, cp ledger.ClosedPosition) error {
	return r.client.CloseTrade(ctx, cp.ID, cp.ExitPrice, cp.ExitTime, string(cp.ExitReason), cp.PnL)
}

func (r *SessionRecorder) SaveProgress(ctx context.Context, sessionID uuid.UUID, candleIndex, tickIndex int, balance float64) error {
	return r.client.UpdateSessionProgress(ctx, sessionID, candleIndex, tickIndex, balance)
}

// ToPosition converts an open trade row back into a ledger position,
// the inverse of RecordOpen.
func (r *TradeRecord) ToPosition() ledger.Position {
	return ledger.Position{
		ID:         r.ID,
		Side:       ledger.Side(r.Side),
		EntryPrice: r.EntryPrice,
		Size:       r.Size,
		StopLoss:   r.StopLoss,
		TakeProfit: r.TakeProfit,
		EntryTime:  r.EntryTime,
	}
}
