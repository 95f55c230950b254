package series

import (
	"errors"
	"fmt"
	"time"

	"replaysim/internal/replay/pricepath"
)

// DefaultTickCount is the number of interpolated ticks generated per
// candle when a caller does not specify one.
const DefaultTickCount = 100

var (
	ErrUnorderedCandles = errors.New("series: candles not in ascending time order")
	ErrTickMismatch     = errors.New("series: tick lists do not match candle count")
)

// Candle is one OHLCV bar for a fixed time bucket.
type Candle struct {
	Start  time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Tick is a sub-candle price sample used to animate candle formation.
// Open is constant at the candle's open; High and Low are the running
// extremes of Price from tick 0 through this tick; Price doubles as the
// running close. Final is true only on the last tick of the candle.
type Tick struct {
	Index int
	Time  time.Time
	Price float64
	Open  float64
	High  float64
	Low   float64
	Final bool
}

// Series is an immutable, time-ordered, gap-tolerant list of candles,
// each optionally decorated with an ordered tick run. A candle without
// ticks is treated by consumers as a one-step reveal.
type Series struct {
	symbol   string
	interval time.Duration
	candles  []Candle
	ticks    [][]Tick
}

// New builds a Series from candles and an optional per-candle tick
// table. ticks may be nil (no candle has ticks) or must have one entry
// per candle, where individual entries may still be nil.
func New(symbol string, interval time.Duration, candles []Candle, ticks [][]Tick) (*Series, error) {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Start.After(candles[i-1].Start) {
			return nil, fmt.Errorf("%w: index %d", ErrUnorderedCandles, i)
		}
	}
	if ticks != nil && len(ticks) != len(candles) {
		return nil, fmt.Errorf("%w: %d tick lists for %d candles", ErrTickMismatch, len(ticks), len(candles))
	}

	s := &Series{
		symbol:   symbol,
		interval: interval,
		candles:  make([]Candle, len(candles)),
	}
	copy(s.candles, candles)
	if ticks != nil {
		s.ticks = make([][]Tick, len(ticks))
		copy(s.ticks, ticks)
	}
	return s, nil
}

func (s *Series) Symbol() string          { return s.symbol }
func (s *Series) Interval() time.Duration { return s.interval }
func (s *Series) Len() int                { return len(s.candles) }

// CandleAt returns the candle at index i.
func (s *Series) CandleAt(i int) Candle { return s.candles[i] }

// TicksOf returns the tick run of candle i, or nil when the candle has
// no ticks. The returned slice is shared and must not be mutated.
func (s *Series) TicksOf(i int) []Tick {
	if s.ticks == nil {
		return nil
	}
	return s.ticks[i]
}

// BuildTicks derives an n-tick run for a candle using the shared price
// path generator. Tick i is stamped at candle start + i*(interval/n).
// The same routine serves offline data preparation and live replay, so
// both produce identically shaped tick runs.
func BuildTicks(gen *pricepath.Generator, c Candle, interval time.Duration, n int) ([]Tick, error) {
	path, err := gen.Generate(c.Open, c.High, c.Low, c.Close, n)
	if err != nil {
		return nil, fmt.Errorf("build ticks for candle %s: %w", c.Start.Format(time.RFC3339), err)
	}

	step := interval / time.Duration(n)
	ticks := make([]Tick, n)

	high, low := c.Open, c.Open
	for i, price := range path {
		if price > high {
			high = price
		}
		if price < low {
			low = price
		}
		ticks[i] = Tick{
			Index: i,
			Time:  c.Start.Add(time.Duration(i) * step),
			Price: price,
			Open:  c.Open,
			High:  high,
			Low:   low,
			Final: i == n-1,
		}
	}
	return ticks, nil
}
