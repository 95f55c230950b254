package session

import (
	"context"
	"sync"

	"replaysim/internal/replay/ledger"

	"github.com/google/uuid"
)

// Recorder receives persistence side effects after defined mutation
// points of a session: position opens, closes (manual or triggered) and
// replay progress snapshots at candle boundaries. Recorder failures are
// logged by the session and never fail the mutation itself.
type Recorder interface {
	RecordOpen(ctx context.Context, sessionID uuid.UUID, p ledger.Position) error
	RecordClose(ctx context.Context, sessionID uuid.UUID, cp ledger.ClosedPosition) error
	SaveProgress(ctx context.Context, sessionID uuid.UUID, candleIndex, tickIndex int, balance float64) error
}

// NopRecorder discards all side effects, keeping the replay core
// usable without a database behind it.
type NopRecorder struct{}

func (NopRecorder) RecordOpen(context.Context, uuid.UUID, ledger.Position) error        { return nil }
func (NopRecorder) RecordClose(context.Context, uuid.UUID, ledger.ClosedPosition) error { return nil }
func (NopRecorder) SaveProgress(context.Context, uuid.UUID, int, int, float64) error    { return nil }

// MemoryRecorder keeps recorded side effects in memory, mainly for
// tests and local runs.
type MemoryRecorder struct {
	mu       sync.Mutex
	opens    []ledger.Position
	closes   []ledger.ClosedPosition
	balances []float64
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) RecordOpen(_ context.Context, _ uuid.UUID, p ledger.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens = append(m.opens, p)
	return nil
}

func (m *MemoryRecorder) RecordClose(_ context.Context, _ uuid.UUID, cp ledger.ClosedPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, cp)
	return nil
}

func (m *MemoryRecorder) SaveProgress(_ context.Context, _ uuid.UUID, _, _ int, balance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = append(m.balances, balance)
	return nil
}

func (m *MemoryRecorder) Opens() []ledger.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Position, len(m.opens))
	copy(out, m.opens)
	return out
}

func (m *MemoryRecorder) Closes() []ledger.ClosedPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.ClosedPosition, len(m.closes))
	copy(out, m.closes)
	return out
}
