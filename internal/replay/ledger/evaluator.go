package ledger

import "github.com/google/uuid"

// Trigger is an exit decision produced by evaluating resting orders
// against a price excursion. ExitPrice is always the resting level
// itself, never the excursion's actual extreme.
type Trigger struct {
	PositionID uuid.UUID
	ExitPrice  float64
	Reason     ExitReason
}

// EvaluateWindow decides, for each open position, whether the high/low
// excursion of the current replay step forces it closed. Stop-loss is
// always checked before take-profit: when a single window spans both
// levels the position closes at the stop, never the target. Positions
// without any resting level are never touched.
//
// Evaluation granularity materially changes which trades get stopped
// out, so callers run this once per tick in progressive replay, once
// per candle in instant replay, and over the entire remaining candle
// range before a skip.
func EvaluateWindow(positions []Position, high, low float64) []Trigger {
	var triggers []Trigger
	for _, p := range positions {
		if p.Side == Buy {
			switch {
			case p.StopLoss != nil && low <= *p.StopLoss:
				triggers = append(triggers, Trigger{p.ID, *p.StopLoss, ExitStopLoss})
			case p.TakeProfit != nil && high >= *p.TakeProfit:
				triggers = append(triggers, Trigger{p.ID, *p.TakeProfit, ExitTakeProfit})
			}
			continue
		}
		switch {
		case p.StopLoss != nil && high >= *p.StopLoss:
			triggers = append(triggers, Trigger{p.ID, *p.StopLoss, ExitStopLoss})
		case p.TakeProfit != nil && low <= *p.TakeProfit:
			triggers = append(triggers, Trigger{p.ID, *p.TakeProfit, ExitTakeProfit})
		}
	}
	return triggers
}
