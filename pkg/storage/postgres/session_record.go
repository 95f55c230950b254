package postgres

import (
	"time"

	"github.com/google/uuid"
)

// SessionRecord is the persisted identity and progress of one replay
// session. Sessions are never deleted, only superseded by newer ones.
type SessionRecord struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserID   string `gorm:"type:text;not null;index:idx_session_user"`
	Symbol   string `gorm:"type:text;not null"`
	Interval string `gorm:"type:varchar(10);not null"`
	Mode     string `gorm:"type:varchar(16);not null"`

	StartDate time.Time `gorm:"not null"`

	InitialBalance float64 `gorm:"type:numeric;not null"`
	Balance        float64 `gorm:"type:numeric;not null"`

	// replay progress, sampled at candle boundaries
	CandleIndex int `gorm:"not null"`
	TickIndex   int `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (SessionRecord) TableName() string {
	return "session_record"
}
