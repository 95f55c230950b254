package postgres

import "time"

// TickRecord is one interpolated sub-candle price sample, generated
// offline from a stored candle. Open stays at the candle open; High,
// Low carry the running extremes through this tick; Price doubles as
// the running close.
type TickRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol      string    `gorm:"type:text;not null;index:idx_tick_symbol_interval_start_idx,unique"`
	Interval    string    `gorm:"type:varchar(10);not null;index:idx_tick_symbol_interval_start_idx,unique"`
	CandleStart time.Time `gorm:"not null;index:idx_tick_symbol_interval_start_idx,unique"`
	TickIndex   int       `gorm:"not null;index:idx_tick_symbol_interval_start_idx,unique"`

	Time  time.Time `gorm:"not null"`
	Price float64   `gorm:"type:numeric;not null"`
	Open  float64   `gorm:"type:numeric;not null"`
	High  float64   `gorm:"type:numeric;not null"`
	Low   float64   `gorm:"type:numeric;not null"`
	Final bool      `gorm:"not null"`
}

// TableName overrides the default table name for GORM.
func (TickRecord) TableName() string {
	return "tick_record"
}
