package session

import (
	"context"
	"testing"
	"time"

	"replaysim/internal/replay/cursor"
	"replaysim/internal/replay/ledger"
	"replaysim/internal/replay/pricepath"
	"replaysim/internal/replay/series"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func makeTicks(c series.Candle, prices []float64) []series.Tick {
	step := time.Minute / time.Duration(len(prices))
	ticks := make([]series.Tick, len(prices))
	high, low := c.Open, c.Open
	for i, p := range prices {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
		ticks[i] = series.Tick{
			Index: i,
			Time:  c.Start.Add(time.Duration(i) * step),
			Price: p,
			Open:  c.Open,
			High:  high,
			Low:   low,
			Final: i == len(prices)-1,
		}
	}
	return ticks
}

func twoCandleSeries(t *testing.T) *series.Series {
	t.Helper()
	candles := []series.Candle{
		{Start: t0, Open: 100, High: 110, Low: 95, Close: 105},
		{Start: t0.Add(time.Minute), Open: 105, High: 120, Low: 104, Close: 118},
	}
	ticks := [][]series.Tick{
		makeTicks(candles[0], []float64{100, 95, 110, 105}),
		makeTicks(candles[1], []float64{105, 104, 120, 118}),
	}
	s, err := series.New("BTCUSDT", time.Minute, candles, ticks)
	require.NoError(t, err)
	return s
}

func TestNewRequiresCandles(t *testing.T) {
	empty, err := series.New("BTCUSDT", time.Minute, nil, nil)
	require.NoError(t, err)

	_, err = New(empty, Config{InitialBalance: 10000})
	assert.ErrorIs(t, err, ErrNoCandles)
}

func TestManualCloseMovesBalance(t *testing.T) {
	rec := NewMemoryRecorder()
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000, Recorder: rec})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := sess.OpenPosition(ctx, ledger.Buy, 2, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.EntryPrice, "entry at the current replay price")

	sess.Step(ctx)
	sess.Step(ctx) // price now at the 110 tick

	cp, err := sess.ClosePosition(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.ExitManual, cp.ExitReason)
	assert.Equal(t, 110.0, cp.ExitPrice)
	assert.Equal(t, 20.0, cp.PnL)
	assert.Equal(t, 10020.0, sess.Balance())

	require.Len(t, rec.Opens(), 1)
	require.Len(t, rec.Closes(), 1)
	assert.Equal(t, cp.PnL, rec.Closes()[0].PnL)
}

func TestStepTriggersStop(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := sess.OpenPosition(ctx, ledger.Buy, 1, ptr(96), nil)
	require.NoError(t, err)

	// Tick 0 (price 100) does not trigger; tick 1 dips to 95.
	res := sess.Step(ctx)
	assert.Empty(t, res.Closed)

	res = sess.Step(ctx)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, p.ID, res.Closed[0].ID)
	assert.Equal(t, ledger.ExitStopLoss, res.Closed[0].ExitReason)
	assert.Equal(t, 96.0, res.Closed[0].ExitPrice)
	assert.Equal(t, 10000.0-4.0, sess.Balance())
}

func TestSkipCandlePreEvaluates(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	// Stop sits strictly inside candle 0's range; no tick is visited
	// individually, yet the skip must not let the position escape.
	p, err := sess.OpenPosition(ctx, ledger.Buy, 1, ptr(96), nil)
	require.NoError(t, err)

	res := sess.SkipCandle(ctx)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, p.ID, res.Closed[0].ID)
	assert.Equal(t, ledger.ExitStopLoss, res.Closed[0].ExitReason)
	assert.Equal(t, 96.0, res.Closed[0].ExitPrice)

	assert.Equal(t, 1, sess.Describe().CandleIndex)
	assert.Empty(t, sess.OpenPositions())
}

func TestStepAfterCompletionIsNoop(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		sess.Step(ctx)
	}
	require.True(t, sess.Done())

	before := sess.Describe()
	res := sess.Step(ctx)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Closed)
	assert.Equal(t, before, sess.Describe())
}

func TestVisibleHistoryNeverShowsFuture(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000})
	require.NoError(t, err)

	hist := sess.VisibleHistory()
	require.Len(t, hist, 1)
	assert.False(t, hist[0].Complete)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		sess.Step(ctx)
	}
	hist = sess.VisibleHistory()
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Complete)
}

func TestResumeRestoresProgress(t *testing.T) {
	sess, err := Resume(twoCandleSeries(t), Config{InitialBalance: 10000}, 1, 2, 10250, nil)
	require.NoError(t, err)

	desc := sess.Describe()
	assert.Equal(t, 1, desc.CandleIndex)
	assert.Equal(t, 2, desc.TickIndex)
	assert.Equal(t, 10250.0, desc.Balance)
	assert.Equal(t, 120.0, sess.CurrentPrice())
}

// A resumed session carries its persisted open positions: they keep
// their identity and stay armed, so a stop crossed after the restart
// still fires and settles into the balance.
func TestResumeRestoresOpenPositions(t *testing.T) {
	rec := NewMemoryRecorder()
	restored := ledger.Position{
		ID:         uuid.New(),
		Side:       ledger.Buy,
		EntryPrice: 100,
		Size:       1,
		StopLoss:   ptr(104.5),
		EntryTime:  t0,
	}

	sess, err := Resume(twoCandleSeries(t), Config{InitialBalance: 10000, Recorder: rec},
		1, 0, 10250, []ledger.Position{restored})
	require.NoError(t, err)

	open := sess.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, restored.ID, open[0].ID)

	ctx := context.Background()
	// Tick 0 of candle 1 sits at 105; tick 1 dips to 104, through the
	// restored stop.
	res := sess.Step(ctx)
	assert.Empty(t, res.Closed)

	res = sess.Step(ctx)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, restored.ID, res.Closed[0].ID)
	assert.Equal(t, ledger.ExitStopLoss, res.Closed[0].ExitReason)
	assert.Equal(t, 104.5, res.Closed[0].ExitPrice)
	assert.Equal(t, 10250.0+4.5, sess.Balance())

	require.Len(t, rec.Closes(), 1)
	assert.Empty(t, sess.OpenPositions())
}

func TestResumeRejectsCorruptPositions(t *testing.T) {
	bad := ledger.Position{ID: uuid.New(), Side: "HOLD", EntryPrice: 100, Size: 1}
	_, err := Resume(twoCandleSeries(t), Config{InitialBalance: 10000}, 0, 0, 10000,
		[]ledger.Position{bad})
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestInstantModeStepsWholeCandles(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{Mode: cursor.Instant, InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := sess.OpenPosition(ctx, ledger.Sell, 1, nil, ptr(96))
	require.NoError(t, err)
	assert.Equal(t, 105.0, p.EntryPrice, "instant mode trades at the candle close")

	// Candle 0's low of 95 crosses the short's target in one step.
	res := sess.Step(ctx)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ledger.ExitTakeProfit, res.Closed[0].ExitReason)
	assert.Equal(t, 96.0, res.Closed[0].ExitPrice)
	assert.True(t, res.Complete)
}

// A stop lying strictly inside the last candle of the series must fire
// before the replay reports completion; reaching the end never leaves
// a crossed level untriggered.
func TestStopInsideFinalCandleFires(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{Mode: cursor.Instant, InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	// Candle 0 spans [95,110], candle 1 spans [104,120]: only the
	// final candle crosses the short's stop at 119.
	p, err := sess.OpenPosition(ctx, ledger.Sell, 1, ptr(119), nil)
	require.NoError(t, err)

	res := sess.Step(ctx)
	require.True(t, res.Complete)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, p.ID, res.Closed[0].ID)
	assert.Equal(t, ledger.ExitStopLoss, res.Closed[0].ExitReason)
	assert.Equal(t, 119.0, res.Closed[0].ExitPrice)
	assert.Equal(t, 10000.0+(105.0-119.0), sess.Balance())
	assert.Empty(t, sess.OpenPositions())
}

// One-candle instant series: the session is terminal from the start,
// yet its only window must still be run through the evaluator.
func TestSingleCandleInstantEvaluates(t *testing.T) {
	candles := []series.Candle{{Start: t0, Open: 100, High: 110, Low: 95, Close: 105}}
	s, err := series.New("BTCUSDT", time.Minute, candles, nil)
	require.NoError(t, err)

	sess, err := New(s, Config{Mode: cursor.Instant, InitialBalance: 10000})
	require.NoError(t, err)
	require.True(t, sess.Done())

	ctx := context.Background()
	_, err = sess.OpenPosition(ctx, ledger.Sell, 1, nil, ptr(96))
	require.NoError(t, err)

	res := sess.Step(ctx)
	require.True(t, res.Complete)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, ledger.ExitTakeProfit, res.Closed[0].ExitReason)

	// Terminal steps stay idempotent once everything has settled.
	res = sess.Step(ctx)
	assert.True(t, res.Complete)
	assert.Empty(t, res.Closed)
}

func TestSkipIntoFinalCandleEvaluates(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{Mode: cursor.Instant, InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := sess.OpenPosition(ctx, ledger.Sell, 1, ptr(119), nil)
	require.NoError(t, err)

	res := sess.SkipCandle(ctx)
	require.True(t, res.Complete)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, p.ID, res.Closed[0].ID)
	assert.Equal(t, 119.0, res.Closed[0].ExitPrice)
}

// Full progressive run over a generated 100-tick candle: a buy with a
// stop just under the open must close at the stop, at the first tick
// whose running low reaches it.
func TestEndToEndStopOut(t *testing.T) {
	candle := series.Candle{
		Start: t0,
		Open:  50000, High: 50500, Low: 49800, Close: 50200,
	}
	ticks, err := series.BuildTicks(pricepath.New(), candle, time.Minute, 100)
	require.NoError(t, err)

	s, err := series.New("BTCUSDT", time.Minute, []series.Candle{candle}, [][]series.Tick{ticks})
	require.NoError(t, err)

	sess, err := New(s, Config{InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := sess.OpenPosition(ctx, ledger.Buy, 0.1, ptr(49900), nil)
	require.NoError(t, err)
	require.Equal(t, 50000.0, p.EntryPrice)

	var closed []ledger.ClosedPosition
	for !sess.Done() {
		res := sess.Step(ctx)
		closed = append(closed, res.Closed...)
	}

	require.Len(t, closed, 1, "the path must dip through the stop on its way to the low")
	cp := closed[0]
	assert.Equal(t, ledger.ExitStopLoss, cp.ExitReason)
	assert.Equal(t, 49900.0, cp.ExitPrice)
	assert.Equal(t, (49900.0-50000.0)*0.1, cp.PnL)
	assert.Equal(t, 10000.0+cp.PnL, sess.Balance())

	// The trigger fired at the first tick whose running low crossed
	// the stop.
	firstCross := -1
	for _, tk := range ticks {
		if tk.Low <= 49900 {
			firstCross = tk.Index
			break
		}
	}
	require.GreaterOrEqual(t, firstCross, 0)
	assert.Equal(t, ticks[firstCross].Time, cp.ExitTime)
}

func TestAutoplayStopsAtEnd(t *testing.T) {
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sess.StartAutoplay(ctx, time.Millisecond))
	assert.ErrorIs(t, sess.StartAutoplay(ctx, time.Millisecond), ErrAutoplayRunning)

	deadline := time.After(2 * time.Second)
	for !sess.Done() {
		select {
		case <-deadline:
			t.Fatal("autoplay did not finish the series in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Once the loop has wound down the session accepts a new autoplay.
	require.Eventually(t, func() bool {
		if err := sess.StartAutoplay(ctx, time.Millisecond); err == nil {
			sess.StopAutoplay()
			return true
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestManagerRegistry(t *testing.T) {
	m := NewManager()
	sess, err := New(twoCandleSeries(t), Config{InitialBalance: 10000})
	require.NoError(t, err)

	_, err = m.Get(sess.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Add(sess)
	got, err := m.Get(sess.ID())
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Len(t, m.List(), 1)
}
