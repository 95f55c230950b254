package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPositionNotFound = errors.New("ledger: position not found")
	ErrInvalidInput     = errors.New("ledger: invalid input")
)

// Side is the direction of a simulated position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ParseSide normalizes a user-supplied side string.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Buy):
		return Buy, nil
	case string(Sell):
		return Sell, nil
	default:
		return "", fmt.Errorf("%w: side %q", ErrInvalidInput, s)
	}
}

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitManual     ExitReason = "manual"
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
)

// Position is an open simulated exposure. StopLoss and TakeProfit are
// independent optional levels; no ordering relative to the entry is
// enforced, an inverted stop simply never triggers.
type Position struct {
	ID         uuid.UUID `json:"id"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Size       float64   `json:"size"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	EntryTime  time.Time `json:"entry_time"`
}

// ClosedPosition is terminal; it is never mutated after closing.
type ClosedPosition struct {
	Position
	ExitPrice  float64    `json:"exit_price"`
	ExitTime   time.Time  `json:"exit_time"`
	ExitReason ExitReason `json:"exit_reason"`
	PnL        float64    `json:"pnl"`
}

// PnL is the realized profit of a closed position. No fees, slippage
// or leverage are modeled.
func PnL(side Side, entry, exit, size float64) float64 {
	if side == Buy {
		return (exit - entry) * size
	}
	return (entry - exit) * size
}

// Ledger is the open and closed position bookkeeping of one replay
// session. It is not safe for concurrent use; the owning session
// serializes access. Balance bookkeeping is the caller's job, the
// ledger only reports realized pnl.
type Ledger struct {
	open   []*Position
	closed []ClosedPosition
}

func New() *Ledger {
	return &Ledger{}
}

// Open validates and records a new position.
func (l *Ledger) Open(side Side, entryPrice, size float64, stopLoss, takeProfit *float64, entryTime time.Time) (Position, error) {
	if side != Buy && side != Sell {
		return Position{}, fmt.Errorf("%w: side %q", ErrInvalidInput, side)
	}
	if entryPrice <= 0 {
		return Position{}, fmt.Errorf("%w: entry price %v", ErrInvalidInput, entryPrice)
	}
	if size <= 0 {
		return Position{}, fmt.Errorf("%w: size %v", ErrInvalidInput, size)
	}

	p := &Position{
		ID:         uuid.New(),
		Side:       side,
		EntryPrice: entryPrice,
		Size:       size,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		EntryTime:  entryTime,
	}
	l.open = append(l.open, p)
	return *p, nil
}

// Restore re-seats previously persisted open positions with their
// identities intact. Entries are validated up front so a corrupted
// snapshot cannot half-load the ledger.
func (l *Ledger) Restore(positions []Position) error {
	for _, p := range positions {
		if p.ID == uuid.Nil {
			return fmt.Errorf("%w: restored position without id", ErrInvalidInput)
		}
		if p.Side != Buy && p.Side != Sell {
			return fmt.Errorf("%w: restored position %s side %q", ErrInvalidInput, p.ID, p.Side)
		}
		if p.EntryPrice <= 0 || p.Size <= 0 {
			return fmt.Errorf("%w: restored position %s entry %v size %v", ErrInvalidInput, p.ID, p.EntryPrice, p.Size)
		}
	}
	for i := range positions {
		p := positions[i]
		l.open = append(l.open, &p)
	}
	return nil
}

// Close transitions an open position to closed, computing its pnl.
// This is the only path by which a position leaves the open set.
func (l *Ledger) Close(id uuid.UUID, exitPrice float64, exitTime time.Time, reason ExitReason) (ClosedPosition, error) {
	for i, p := range l.open {
		if p.ID != id {
			continue
		}
		l.open = append(l.open[:i], l.open[i+1:]...)
		cp := ClosedPosition{
			Position:   *p,
			ExitPrice:  exitPrice,
			ExitTime:   exitTime,
			ExitReason: reason,
			PnL:        PnL(p.Side, p.EntryPrice, exitPrice, p.Size),
		}
		l.closed = append(l.closed, cp)
		return cp, nil
	}
	return ClosedPosition{}, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
}

// OpenPositions returns the open set in opening order.
func (l *Ledger) OpenPositions() []Position {
	out := make([]Position, len(l.open))
	for i, p := range l.open {
		out[i] = *p
	}
	return out
}

// ClosedPositions returns the closed set in closing order.
func (l *Ledger) ClosedPositions() []ClosedPosition {
	out := make([]ClosedPosition, len(l.closed))
	copy(out, l.closed)
	return out
}
