package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tindahan-pos/config"
	"tindahan-pos/internal/handler"
	"tindahan-pos/internal/middleware"
	"tindahan-pos/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Queue        *handler.QueueHandler
	Sync         *handler.SyncHandler
	Connectivity *handler.ConnectivityHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggingMiddleware(l))

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// RegisterRoutes installs the local API the POS shell consumes.
func (s *Server) RegisterRoutes(h Handlers) {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	api := s.engine.Group("/api/v1")
	{
		api.POST("/queue", h.Queue.Enqueue)
		api.GET("/queue/stats", h.Queue.Stats)
		api.GET("/queue/transactions", h.Queue.List)
		api.POST("/sync", h.Sync.Trigger)
		api.GET("/sync/progress", h.Sync.Progress)
		api.GET("/connectivity", h.Connectivity.State)
		api.POST("/connectivity/online", h.Connectivity.ReportOnline)
		api.POST("/connectivity/offline", h.Connectivity.ReportOffline)
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.logger.Infof("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests with a bounded grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
