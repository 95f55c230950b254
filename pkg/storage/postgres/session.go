package postgres

import (
	"context"

	"github.com/google/uuid"
)

// CreateSession persists the identity row of a new replay session.
func (p *PostgresClient) CreateSession(ctx context.Context, record *SessionRecord) error {
	return p.DB.WithContext(ctx).Create(record).Error
}

// GetSession loads a session row by id.
func (p *PostgresClient) GetSession(ctx context.Context, id uuid.UUID) (*SessionRecord, error) {
	var record SessionRecord
	err := p.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&record).Error

	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateSessionProgress stores the replay position and running balance
// of a session.
func (p *PostgresClient) UpdateSessionProgress(ctx context.Context, id uuid.UUID, candleIndex, tickIndex int, balance float64) error {
	return p.DB.WithContext(ctx).
		Model(&SessionRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"candle_index": candleIndex,
			"tick_index":   tickIndex,
			"balance":      balance,
		}).Error
}

// ListSessions returns a user's sessions, newest first.
func (p *PostgresClient) ListSessions(ctx context.Context, userID string) ([]SessionRecord, error) {
	var records []SessionRecord
	err := p.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&records).Error

	if err != nil {
		return nil, err
	}
	return records, nil
}
