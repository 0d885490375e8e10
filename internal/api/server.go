// Package api exposes the simulation service over HTTP: job submission and
// lifecycle, persisted run results, report rendering, a WebSocket progress
// stream per job, and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/jobs"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/storage"
)

// Options configures a Server. Scheduler is required; the stores are
// optional and endpoints that need a missing store answer 503.
type Options struct {
	Scheduler   *jobs.Scheduler
	BarStore    storage.BarStore
	ResultStore storage.RunResultStore
	Metrics     *observability.Metrics
	// BaseConfig is applied when a submission carries no config of its own.
	BaseConfig domain.SimulationConfig
	Logger     *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *log.Logger
}

// NewServer builds the router and wraps it in an http.Server on addr.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
		opts.Logger = logger
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		engine: engine,
		logger: logger,
		server: &http.Server{
			Addr:    addr,
			Handler: engine,
		},
	}

	handler := NewHandler(opts)
	s.setupRoutes(handler)
	return s
}

func (s *Server) setupRoutes(h *Handler) {
	api := s.engine.Group("/api")
	{
		api.POST("/runs", h.SubmitRun)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)

		api.GET("/jobs", h.ListJobs)
		api.GET("/jobs/:id", h.GetJob)
		api.DELETE("/jobs/:id", h.CancelJob)

		api.GET("/reports/:symbol", h.GetReport)
	}

	s.engine.GET("/ws/jobs/:id", h.StreamJob)

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(observability.Handler()))
}

// Start blocks serving HTTP until Shutdown or a listener failure.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// WebSocket upgrades log their own lifecycle.
		if c.IsWebsocket() {
			return
		}
		logger.Printf("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}
