package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/crypto-etl/internal/model"
	"github.com/rickgao/crypto-etl/internal/storage"
)

// Triggerer is the slice of the orchestrator the trigger endpoint drives.
type Triggerer interface {
	TriggerNow(trigger string) (model.RunOutcome, error)
	BreakerOpen() bool
	BreakerFailures() int
}

// Store is the slice of the storage backend the read endpoints use.
type Store interface {
	Name() string
	RowCount(ctx context.Context) (int64, error)
	LatestSnapshot(ctx context.Context) ([]storage.Row, error)
}

// Server exposes the ops API over HTTP: manual trigger, health, and the
// latest persisted snapshot.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New assembles the router and wraps it in an http.Server listening on port.
// Call Start to begin serving.
func New(port int, orch Triggerer, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	h := &handler{orch: orch, store: store, logger: logger}

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(h),
		},
		logger: logger,
	}
}

func newRouter(h *handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.health)

	api := router.Group("/api/v1")
	{
		api.POST("/etl/trigger", h.trigger)
		api.GET("/market/latest", h.latest)
	}

	return router
}

// Start serves in a background goroutine until Shutdown is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("ops server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("ops server error", "error", err)
		}
	}()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
