package postgres

import (
	"time"

	"github.com/google/uuid"
)

// TradeRecord mirrors one ledger position. A row is inserted when the
// position opens and completed in place when it closes; the exit
// columns stay NULL while the position is open.
type TradeRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index:idx_trade_session"`

	Side       string   `gorm:"type:varchar(8);not null"`
	EntryPrice float64  `gorm:"type:numeric;not null"`
	Size       float64  `gorm:"type:numeric;not null"`
	StopLoss   *float64 `gorm:"type:numeric"`
	TakeProfit *float64 `gorm:"type:numeric"`

	EntryTime time.Time `gorm:"not null"`

	ExitPrice  *float64 `gorm:"type:numeric"`
	ExitTime   *time.Time
	ExitReason *string  `gorm:"type:varchar(16)"`
	Pnl        *float64 `gorm:"type:numeric"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (TradeRecord) TableName() string {
	return "trade_record"
}
