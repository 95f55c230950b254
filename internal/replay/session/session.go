package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"replaysim/internal/replay/cursor"
	"replaysim/internal/replay/ledger"
	"replaysim/internal/replay/series"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoCandles       = errors.New("session: no candle data")
	ErrAutoplayRunning = errors.New("session: autoplay already running")
)

// Config carries the knobs for a new session. Zero values fall back to
// a generated ID, a no-op recorder and a no-op logger.
type Config struct {
	ID             uuid.UUID
	Mode           cursor.Mode
	InitialBalance float64
	Recorder       Recorder
	Logger         *zap.Logger
}

// StepResult describes one replay step: the price window that was
// evaluated, the positions it force-closed, and whether the series is
// exhausted. Complete on an exhausted series lets drivers stop their
// autoplay loop instead of treating the end as an error.
type StepResult struct {
	Window   cursor.Window           `json:"window"`
	Closed   []ledger.ClosedPosition `json:"closed,omitempty"`
	Complete bool                    `json:"complete"`
}

// Session is one user's replay of one (symbol, timeframe) span. It
// owns its cursor, ledger and running balance, and serializes every
// mutation behind one mutex so concurrent step requests for the same
// session cannot race; distinct sessions share nothing.
type Session struct {
	id      uuid.UUID
	mu      sync.Mutex
	series  *series.Series
	cursor  *cursor.Cursor
	ledger  *ledger.Ledger
	initial float64
	balance float64
	rec     Recorder
	log     *zap.Logger

	autoplayStop chan struct{}
}

// New builds a session over a prepared series, starting at the first
// tick of the first candle.
func New(s *series.Series, cfg Config) (*Session, error) {
	return resume(s, cfg, 0, 0, cfg.InitialBalance, nil)
}

// Resume restores a session at a previously saved replay position and
// balance. open rehydrates the positions that were still open when the
// session was last persisted; they keep their identities and stay
// subject to stop and target evaluation.
func Resume(s *series.Series, cfg Config, candleIndex, tickIndex int, balance float64, open []ledger.Position) (*Session, error) {
	return resume(s, cfg, candleIndex, tickIndex, balance, open)
}

func resume(s *series.Series, cfg Config, candleIndex, tickIndex int, balance float64, open []ledger.Position) (*Session, error) {
	if s.Len() == 0 {
		return nil, ErrNoCandles
	}
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	led := ledger.New()
	if err := led.Restore(open); err != nil {
		return nil, err
	}
	return &Session{
		id:      cfg.ID,
		series:  s,
		cursor:  cursor.NewAt(s, cfg.Mode, candleIndex, tickIndex),
		ledger:  led,
		initial: cfg.InitialBalance,
		balance: balance,
		rec:     cfg.Recorder,
		log:     cfg.Logger.With(zap.String("session", cfg.ID.String())),
	}, nil
}

func (s *Session) ID() uuid.UUID     { return s.id }
func (s *Session) Symbol() string    { return s.series.Symbol() }
func (s *Session) Mode() cursor.Mode { return s.cursor.Mode() }

// Step performs one synchronous replay step: read the current forming
// window, close every position whose stop or target it crosses, then
// advance the cursor. Stepping a finished session is an idempotent
// no-op reported through StepResult.Complete.
func (s *Session) Step(ctx context.Context) StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	win := s.cursor.Window()
	closed := s.applyTriggers(ctx, win.High, win.Low)

	// At the end of the series the window is still evaluated, so a
	// stop or target inside the last candle fires. Repeated terminal
	// steps stay idempotent: closed positions yield no new triggers.
	if s.cursor.Done() {
		if len(closed) > 0 {
			s.saveProgress(ctx)
		}
		return StepResult{Window: win, Closed: closed, Complete: true}
	}
	s.cursor.Advance()

	// Advancing can land on the terminal position, revealing the final
	// window without a further step ever being guaranteed; evaluate it
	// now so completion never leaves a crossed level untriggered.
	if s.cursor.Done() {
		last := s.cursor.Window()
		closed = append(closed, s.applyTriggers(ctx, last.High, last.Low)...)
	}

	// Snapshot progress once per completed candle rather than on
	// every tick.
	if win.Complete || s.cursor.Done() {
		s.saveProgress(ctx)
	}

	return StepResult{Window: win, Closed: closed, Complete: s.cursor.Done()}
}

// SkipCandle fast-forwards to the next candle. The entire remaining
// excursion of the current candle is evaluated first, so a position
// whose stop or target lies inside the skipped ticks is still closed
// even though no intermediate tick is individually visited.
func (s *Session) SkipCandle(ctx context.Context) StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor.Done() {
		win := s.cursor.Window()
		closed := s.applyTriggers(ctx, win.High, win.Low)
		if len(closed) > 0 {
			s.saveProgress(ctx)
		}
		return StepResult{Window: win, Closed: closed, Complete: true}
	}

	from := s.cursor.CandleIndex()
	rem := s.cursor.RemainingWindow()
	closed := s.applyTriggers(ctx, rem.High, rem.Low)
	s.cursor.SkipToNextCandle()

	// A skip landing on a terminal candle reveals it whole; evaluate
	// it too. When the skip merely completed the current candle the
	// remaining window above already covered every tick of it.
	if s.cursor.Done() && s.cursor.CandleIndex() != from {
		last := s.cursor.Window()
		closed = append(closed, s.applyTriggers(ctx, last.High, last.Low)...)
	}
	s.saveProgress(ctx)

	return StepResult{Window: s.cursor.Window(), Closed: closed, Complete: s.cursor.Done()}
}

// OpenPosition opens a simulated position at the current replay price.
func (s *Session) OpenPosition(ctx context.Context, side ledger.Side, size float64, stopLoss, takeProfit *float64) (ledger.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.cursor.Window().Close
	p, err := s.ledger.Open(side, entry, size, stopLoss, takeProfit, s.cursor.Now())
	if err != nil {
		return ledger.Position{}, err
	}

	s.log.Info("position opened",
		zap.String("position", p.ID.String()),
		zap.String("side", string(p.Side)),
		zap.Float64("entry", p.EntryPrice),
		zap.Float64("size", p.Size))

	if err := s.rec.RecordOpen(ctx, s.id, p); err != nil {
		s.log.Warn("failed to record position open", zap.Error(err))
	}
	return p, nil
}

// ClosePosition closes an open position manually at the current replay
// price.
func (s *Session) ClosePosition(ctx context.Context, id uuid.UUID) (ledger.ClosedPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	price := s.cursor.Window().Close
	cp, err := s.ledger.Close(id, price, s.cursor.Now(), ledger.ExitManual)
	if err != nil {
		return ledger.ClosedPosition{}, err
	}
	s.settle(ctx, cp)
	return cp, nil
}

func (s *Session) VisibleHistory() []cursor.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.VisibleHistory()
}

// CurrentPrice is the last traded price at the replay position.
func (s *Session) CurrentPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Window().Close
}

func (s *Session) OpenPositions() []ledger.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.OpenPositions()
}

func (s *Session) ClosedPositions() []ledger.ClosedPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ClosedPositions()
}

// Balance is the running balance: initial balance plus the sum of all
// realized pnl.
func (s *Session) Balance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance
}

func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Done()
}

// Progress reports the current replay position for persistence.
func (s *Session) Progress() (candleIndex, tickIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.CandleIndex(), s.cursor.TickIndex()
}

// StartAutoplay drives Step on a fixed cadence until the series is
// exhausted, the context is cancelled or StopAutoplay is called.
func (s *Session) StartAutoplay(ctx context.Context, every time.Duration) error {
	s.mu.Lock()
	if s.autoplayStop != nil {
		s.mu.Unlock()
		return ErrAutoplayRunning
	}
	stop := make(chan struct{})
	s.autoplayStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.clearAutoplay()
				return
			case <-stop:
				return
			case <-ticker.C:
				if res := s.Step(ctx); res.Complete {
					s.log.Info("autoplay reached end of series")
					s.clearAutoplay()
					return
				}
			}
		}
	}()
	return nil
}

// StopAutoplay stops a running autoplay loop; stopping an idle session
// is a no-op.
func (s *Session) StopAutoplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoplayStop != nil {
		close(s.autoplayStop)
		s.autoplayStop = nil
	}
}

func (s *Session) clearAutoplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoplayStop = nil
}

// applyTriggers closes every position the given excursion forces out.
// Callers hold s.mu.
func (s *Session) applyTriggers(ctx context.Context, high, low float64) []ledger.ClosedPosition {
	triggers := ledger.EvaluateWindow(s.ledger.OpenPositions(), high, low)
	if len(triggers) == 0 {
		return nil
	}

	closed := make([]ledger.ClosedPosition, 0, len(triggers))
	now := s.cursor.Now()
	for _, tr := range triggers {
		cp, err := s.ledger.Close(tr.PositionID, tr.ExitPrice, now, tr.Reason)
		if err != nil {
			// Cannot happen while the mutex is held; keep the
			// ledger authoritative if it ever does.
			s.log.Error("failed to close triggered position", zap.Error(err))
			continue
		}
		s.settle(ctx, cp)
		closed = append(closed, cp)
	}
	return closed
}

// settle applies a realized close to the balance and hands it to the
// recorder. Callers hold s.mu.
func (s *Session) settle(ctx context.Context, cp ledger.ClosedPosition) {
	s.balance += cp.PnL

	s.log.Info("position closed",
		zap.String("position", cp.ID.String()),
		zap.String("reason", string(cp.ExitReason)),
		zap.Float64("exit", cp.ExitPrice),
		zap.Float64("pnl", cp.PnL),
		zap.Float64("balance", s.balance))

	if err := s.rec.RecordClose(ctx, s.id, cp); err != nil {
		s.log.Warn("failed to record position close", zap.Error(err))
	}
}

// saveProgress snapshots the replay position. Callers hold s.mu.
func (s *Session) saveProgress(ctx context.Context) {
	err := s.rec.SaveProgress(ctx, s.id, s.cursor.CandleIndex(), s.cursor.TickIndex(), s.balance)
	if err != nil {
		s.log.Warn("failed to save replay progress", zap.Error(err))
	}
}

// Describe summarizes the session for API responses.
func (s *Session) Describe() Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Description{
		ID:             s.id,
		Symbol:         s.series.Symbol(),
		Interval:       s.series.Interval().String(),
		Mode:           s.cursor.Mode().String(),
		CandleIndex:    s.cursor.CandleIndex(),
		TickIndex:      s.cursor.TickIndex(),
		CandleCount:    s.series.Len(),
		InitialBalance: s.initial,
		Balance:        s.balance,
		Complete:       s.cursor.Done(),
	}
}

// Description is the externally visible state of a session.
type Description struct {
	ID             uuid.UUID `json:"id"`
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	Mode           string    `json:"mode"`
	CandleIndex    int       `json:"candle_index"`
	TickIndex      int       `json:"tick_index"`
	CandleCount    int       `json:"candle_count"`
	InitialBalance float64   `json:"initial_balance"`
	Balance        float64   `json:"balance"`
	Complete       bool      `json:"complete"`
}
