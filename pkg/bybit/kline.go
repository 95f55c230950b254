package bybit

import (
	"strconv"
	"time"
)

// Kline is one parsed candlestick, with the wire's string prices
// already converted and the interval normalized to its DB code.
type Kline struct {
	Start    time.Time
	End      time.Time
	Interval string // DB code, e.g. "1m", "1h"
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
	Confirm  bool
}

// ParseKlineList converts Bybit REST API kline rows into []Kline.
// It safely skips invalid rows. REST rows are always finalized
// candles, so Confirm is true throughout.
func ParseKlineList(meta KlineIntervalMeta, raw [][]string) []Kline {
	out := make([]Kline, 0, len(raw))

	for _, row := range raw {
		if len(row) < 7 {
			continue // skip incomplete row
		}

		startMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		prices := make([]float64, 0, 6)
		bad := false
		for _, cell := range row[1:7] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				bad = true
				break
			}
			prices = append(prices, v)
		}
		if bad {
			continue
		}

		start := time.UnixMilli(startMs).UTC()
		out = append(out, Kline{
			Start:    start,
			End:      start.Add(meta.Duration()),
			Interval: meta.DBValue,
			Open:     prices[0],
			High:     prices[1],
			Low:      prices[2],
			Close:    prices[3],
			Volume:   prices[4],
			Turnover: prices[5],
			Confirm:  true,
		})
	}
	return out
}

// ParseStreamKline converts one websocket kline entry. ok is false
// when a price field fails to parse.
func ParseStreamKline(meta KlineIntervalMeta, d StreamKline) (Kline, bool) {
	fields := []string{d.Open, d.High, d.Low, d.Close, d.Volume, d.Turnover}
	prices := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Kline{}, false
		}
		prices[i] = v
	}
	return Kline{
		Start:    time.UnixMilli(d.Start).UTC(),
		End:      time.UnixMilli(d.End).UTC(),
		Interval: meta.DBValue,
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		Volume:   prices[4],
		Turnover: prices[5],
		Confirm:  d.Confirm,
	}, true
}
