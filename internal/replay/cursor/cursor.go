package cursor

import (
	"fmt"
	"time"

	"replaysim/internal/replay/series"
)

// Mode selects how candles are revealed during replay.
type Mode int

const (
	// Progressive reveals each candle tick by tick.
	Progressive Mode = iota
	// Instant reveals whole candles at once.
	Instant
)

func (m Mode) String() string {
	if m == Instant {
		return "instant"
	}
	return "progressive"
}

// Parse normalizes a user-supplied mode string. The empty string
// maps to Progressive, the default.
func (m *Mode) Parse(s string) error {
	switch s {
	case "", "progressive":
		*m = Progressive
	case "instant":
		*m = Instant
	default:
		return fmt.Errorf("unknown replay mode %q", s)
	}
	return nil
}

// Window is the OHLC visible at the cursor: either a fully formed
// candle or the partially formed state of the current one.
type Window struct {
	Start    time.Time `json:"start"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Complete bool      `json:"complete"`
}

// Cursor tracks the replay position inside a series. It only ever
// moves forward and clamps at the end of the series; advancing a
// finished cursor is a no-op that callers detect via Done.
type Cursor struct {
	series    *series.Series
	mode      Mode
	candleIdx int
	tickIdx   int
}

// New positions a cursor at the first tick of the first candle.
func New(s *series.Series, mode Mode) *Cursor {
	return &Cursor{series: s, mode: mode}
}

// NewAt restores a cursor at a saved position, clamping out-of-range
// indices so a stale snapshot cannot place the cursor past the end.
func NewAt(s *series.Series, mode Mode, candleIdx, tickIdx int) *Cursor {
	c := &Cursor{series: s, mode: mode}
	if s.Len() == 0 {
		return c
	}
	if candleIdx < 0 {
		candleIdx = 0
	}
	if candleIdx > s.Len()-1 {
		candleIdx = s.Len() - 1
	}
	c.candleIdx = candleIdx

	if ticks := s.TicksOf(candleIdx); mode == Progressive && ticks != nil {
		if tickIdx < 0 {
			tickIdx = 0
		}
		if tickIdx > len(ticks)-1 {
			tickIdx = len(ticks) - 1
		}
		c.tickIdx = tickIdx
	}
	return c
}

func (c *Cursor) Mode() Mode       { return c.mode }
func (c *Cursor) CandleIndex() int { return c.candleIdx }
func (c *Cursor) TickIndex() int   { return c.tickIdx }

// Done reports whether the cursor has reached the end of the series.
func (c *Cursor) Done() bool {
	n := c.series.Len()
	if n == 0 {
		return true
	}
	if c.candleIdx < n-1 {
		return false
	}
	ticks := c.series.TicksOf(c.candleIdx)
	if c.mode == Instant || ticks == nil {
		return true
	}
	return c.tickIdx >= len(ticks)-1
}

// Advance moves one replay step forward. In Progressive mode that is
// the next tick of the current candle, or the first tick of the next
// candle once the current one is exhausted. In Instant mode it is
// always the next candle. At the end of the series Advance does
// nothing.
func (c *Cursor) Advance() {
	if c.Done() {
		return
	}
	if c.mode == Progressive {
		if ticks := c.series.TicksOf(c.candleIdx); ticks != nil && c.tickIdx < len(ticks)-1 {
			c.tickIdx++
			return
		}
	}
	c.candleIdx++
	c.tickIdx = 0
}

// SkipToNextCandle fast-forwards to the start of the next candle,
// regardless of mode. Callers must evaluate resting orders against
// RemainingWindow before skipping so no stop or target inside the
// discarded ticks escapes. On the last candle the cursor jumps to the
// candle's final tick instead, completing the series.
func (c *Cursor) SkipToNextCandle() {
	n := c.series.Len()
	if n == 0 {
		return
	}
	if c.candleIdx < n-1 {
		c.candleIdx++
		c.tickIdx = 0
		return
	}
	if ticks := c.series.TicksOf(c.candleIdx); c.mode == Progressive && ticks != nil {
		c.tickIdx = len(ticks) - 1
	}
}

// Window returns the OHLC visible at the cursor. With ticks in
// Progressive mode it is the running OHLC at the current tick;
// otherwise the whole candle, already complete.
func (c *Cursor) Window() Window {
	candle := c.series.CandleAt(c.candleIdx)
	if c.mode == Progressive {
		if ticks := c.series.TicksOf(c.candleIdx); ticks != nil {
			tk := ticks[c.tickIdx]
			return Window{
				Start:    candle.Start,
				Open:     candle.Open,
				High:     tk.High,
				Low:      tk.Low,
				Close:    tk.Price,
				Complete: tk.Final,
			}
		}
	}
	return Window{
		Start:    candle.Start,
		Open:     candle.Open,
		High:     candle.High,
		Low:      candle.Low,
		Close:    candle.Close,
		Complete: true,
	}
}

// Now returns the replay clock at the cursor: the current tick's
// timestamp in progressive replay, or the close time of the current
// candle when it is revealed whole.
func (c *Cursor) Now() time.Time {
	candle := c.series.CandleAt(c.candleIdx)
	if c.mode == Progressive {
		if ticks := c.series.TicksOf(c.candleIdx); ticks != nil {
			return ticks[c.tickIdx].Time
		}
	}
	return candle.Start.Add(c.series.Interval())
}

// RemainingWindow returns the price excursion still ahead of the
// cursor inside the current candle: the high/low over the ticks from
// the current position through the candle's end, or the whole candle
// when no tick granularity exists. This is what a skip must evaluate
// stops and targets against.
func (c *Cursor) RemainingWindow() Window {
	candle := c.series.CandleAt(c.candleIdx)
	ticks := c.series.TicksOf(c.candleIdx)
	if c.mode != Progressive || ticks == nil {
		return Window{
			Start:    candle.Start,
			Open:     candle.Open,
			High:     candle.High,
			Low:      candle.Low,
			Close:    candle.Close,
			Complete: true,
		}
	}

	high, low := ticks[c.tickIdx].Price, ticks[c.tickIdx].Price
	for _, tk := range ticks[c.tickIdx:] {
		if tk.Price > high {
			high = tk.Price
		}
		if tk.Price < low {
			low = tk.Price
		}
	}
	return Window{
		Start:    candle.Start,
		Open:     candle.Open,
		High:     high,
		Low:      low,
		Close:    candle.Close,
		Complete: true,
	}
}

// VisibleHistory returns every fully completed candle strictly before
// the cursor plus the current forming window as the last bar. Future
// candles are never included.
func (c *Cursor) VisibleHistory() []Window {
	if c.series.Len() == 0 {
		return nil
	}
	out := make([]Window, 0, c.candleIdx+1)
	for i := 0; i < c.candleIdx; i++ {
		candle := c.series.CandleAt(i)
		out = append(out, Window{
			Start:    candle.Start,
			Open:     candle.Open,
			High:     candle.High,
			Low:      candle.Low,
			Close:    candle.Close,
			Complete: true,
		})
	}
	return append(out, c.Window())
}
