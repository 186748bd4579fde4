// Package dashboard serves run telemetry over HTTP for the monitoring
// UI and the comparison arena.
package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"alignstudio/internal/inference"
)

// Server exposes the telemetry log directory and an optional generator
// for side-by-side comparisons.
type Server struct {
	router    *gin.Engine
	logDir    string
	modelName string
	generator inference.Generator
	log       *zap.Logger
}

type Options struct {
	// LogDir is the telemetry directory the handlers read from.
	LogDir string
	// ModelName is the base model used for /api/compare.
	ModelName string
	// Generator backs /api/compare; nil disables the endpoint.
	Generator inference.Generator
	Logger    *zap.Logger
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:    router,
		logDir:    opts.LogDir,
		modelName: opts.ModelName,
		generator: opts.Generator,
		log:       log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id/events", s.handleEvents)
		api.GET("/runs/:id/summary", s.handleSummary)
		api.GET("/runs/:id/series", s.handleSeries)
		api.POST("/compare", s.handleCompare)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	s.log.Info("dashboard listening", zap.String("addr", addr), zap.String("log_dir", s.logDir))
	return s.router.Run(addr)
}
