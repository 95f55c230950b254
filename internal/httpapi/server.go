package httpapi

import (
	"errors"
	"net/http"

	"replaysim/config"
	"replaysim/internal/marketdata"
	"replaysim/internal/replay/ledger"
	"replaysim/internal/replay/session"
	"replaysim/pkg/storage/postgres"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server exposes replay sessions over HTTP. Each session serializes
// its own mutations, so handlers call straight into the session layer
// without extra locking.
type Server struct {
	cfg      *config.Config
	loader   *marketdata.Loader
	db       *postgres.PostgresClient
	sessions *session.Manager
	logger   *zap.Logger
}

func NewServer(cfg *config.Config, loader *marketdata.Loader, db *postgres.PostgresClient,
	sessions *session.Manager, logger *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		loader:   loader,
		db:       db,
		sessions: sessions,
		logger:   logger,
	}
}

// Router builds the gin engine with all API routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions", s.handleListSessions)
		api.GET("/sessions/:id", s.handleGetSession)
		api.POST("/sessions/:id/resume", s.handleResumeSession)

		api.POST("/sessions/:id/step", s.handleStep)
		api.POST("/sessions/:id/skip", s.handleSkipCandle)
		api.POST("/sessions/:id/autoplay", s.handleStartAutoplay)
		api.DELETE("/sessions/:id/autoplay", s.handleStopAutoplay)

		api.GET("/sessions/:id/history", s.handleHistory)
		api.GET("/sessions/:id/price", s.handlePrice)
		api.GET("/sessions/:id/balance", s.handleBalance)

		api.POST("/sessions/:id/positions", s.handleOpenPosition)
		api.POST("/sessions/:id/positions/:pid/close", s.handleClosePosition)
		api.GET("/sessions/:id/positions", s.handlePositions)
		api.GET("/sessions/:id/trades", s.handleTrades)
	}
	return r
}

// writeError maps domain errors onto HTTP status codes. Unrecognized
// errors become opaque 500s so internals never leak to clients.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, ledger.ErrPositionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, session.ErrNoCandles):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, session.ErrAutoplayRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
