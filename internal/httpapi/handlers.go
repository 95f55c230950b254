package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"replaysim/internal/replay/cursor"
	"replaysim/internal/replay/ledger"
	"replaysim/internal/replay/session"
	"replaysim/pkg/storage/postgres"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createSessionRequest struct {
	UserID         string    `json:"user_id" binding:"required"`
	Symbol         string    `json:"symbol" binding:"required"`
	Interval       string    `json:"interval" binding:"required"`
	Start          time.Time `json:"start" binding:"required"`
	Mode           string    `json:"mode"`
	InitialBalance float64   `json:"initial_balance" binding:"required,gt=0"`
	CandleLimit    int       `json:"candle_limit"`
}

type openPositionRequest struct {
	Side       string   `json:"side" binding:"required"`
	Size       float64  `json:"size" binding:"required"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var mode cursor.Mode
	if err := mode.Parse(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := req.CandleLimit
	if limit <= 0 || limit > s.cfg.Replay.CandleLimit {
		limit = s.cfg.Replay.CandleLimit
	}

	ctx := c.Request.Context()
	series, err := s.loader.LoadSeries(ctx, req.Symbol, req.Interval, req.Start, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if series.Len() == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": fmt.Sprintf("no candle data for %s %s from %s",
				req.Symbol, req.Interval, req.Start.Format(time.RFC3339)),
		})
		return
	}

	id := uuid.New()
	if err := s.db.CreateSession(ctx, &postgres.SessionRecord{
		ID:             id,
		UserID:         req.UserID,
		Symbol:         req.Symbol,
		Interval:       req.Interval,
		Mode:           mode.String(),
		StartDate:      req.Start,
		InitialBalance: req.InitialBalance,
		Balance:        req.InitialBalance,
	}); err != nil {
		s.writeError(c, err)
		return
	}

	sess, err := session.New(series, session.Config{
		ID:             id,
		Mode:           mode,
		InitialBalance: req.InitialBalance,
		Recorder:       postgres.NewSessionRecorder(s.db),
		Logger:         s.logger,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.sessions.Add(sess)

	c.JSON(http.StatusCreated, sess.Describe())
}

// handleResumeSession rebuilds a live session from its persisted row,
// picking up at the last saved replay position and balance.
func (s *Server) handleResumeSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	// Already live, nothing to rebuild.
	if sess, err := s.sessions.Get(id); err == nil {
		c.JSON(http.StatusOK, sess.Describe())
		return
	}

	ctx := c.Request.Context()
	record, err := s.db.GetSession(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	series, err := s.loader.LoadSeries(ctx, record.Symbol, record.Interval, record.StartDate, s.cfg.Replay.CandleLimit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var mode cursor.Mode
	if err := mode.Parse(record.Mode); err != nil {
		s.writeError(c, err)
		return
	}

	// Positions that were open at the last snapshot come back into the
	// ledger so stops and targets keep applying after the restart.
	openRecords, err := s.db.ListOpenTrades(ctx, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	open := make([]ledger.Position, len(openRecords))
	for i := range openRecords {
		open[i] = openRecords[i].ToPosition()
	}

	sess, err := session.Resume(series, session.Config{
		ID:             record.ID,
		Mode:           mode,
		InitialBalance: record.InitialBalance,
		Recorder:       postgres.NewSessionRecorder(s.db),
		Logger:         s.logger,
	}, record.CandleIndex, record.TickIndex, record.Balance, open)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.sessions.Add(sess)

	c.JSON(http.StatusOK, sess.Describe())
}

// handleListSessions lists live sessions by default; with a user_id
// query parameter it lists that user's persisted sessions instead,
// including ones not currently resumed.
func (s *Server) handleListSessions(c *gin.Context) {
	if userID := c.Query("user_id"); userID != "" {
		records, err := s.db.ListSessions(c.Request.Context(), userID)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": records})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Describe())
}

func (s *Server) handleStep(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Step(c.Request.Context()))
}

func (s *Server) handleSkipCandle(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.SkipCandle(c.Request.Context()))
}

func (s *Server) handleStartAutoplay(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	// Autoplay outlives the request, so it cannot run on the request
	// context.
	if err := sess.StartAutoplay(context.Background(), s.cfg.Replay.AutoplayInterval); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"autoplay": true, "interval": s.cfg.Replay.AutoplayInterval.String()})
}

func (s *Server) handleStopAutoplay(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	sess.StopAutoplay()
	c.JSON(http.StatusOK, gin.H{"autoplay": false})
}

func (s *Server) handleHistory(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": sess.VisibleHistory()})
}

func (s *Server) handlePrice(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"price": sess.CurrentPrice()})
}

func (s *Server) handleBalance(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": sess.Balance()})
}

func (s *Server) handleOpenPosition(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req openPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	side, err := ledger.ParseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := sess.OpenPosition(c.Request.Context(), side, req.Size, req.StopLoss, req.TakeProfit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	pid, err := uuid.Parse(c.Param("pid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid position id"})
		return
	}

	cp, err := sess.ClosePosition(c.Request.Context(), pid)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (s *Server) handlePositions(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"open":   sess.OpenPositions(),
		"closed": sess.ClosedPositions(),
	})
}

// handleTrades reads from the trade table rather than the in-memory
// ledger, so it also covers sessions that are not currently live.
func (s *Server) handleTrades(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	trades, err := s.db.ListTrades(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil && !s.db.IsHealthy(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// session resolves the :id path parameter to a live session, writing
// the error response itself on failure.
func (s *Server) session(c *gin.Context) (*session.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	return sess, true
}
