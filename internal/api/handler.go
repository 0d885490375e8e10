package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/jobs"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/reporting"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/sizing"
	"backtest-lab/internal/storage"
)

// Handler implements the API endpoints.
type Handler struct {
	scheduler  *jobs.Scheduler
	bars       storage.BarStore
	results    storage.RunResultStore
	metrics    *observability.Metrics
	baseConfig domain.SimulationConfig
	logger     *log.Logger
}

// NewHandler creates a Handler from server options.
func NewHandler(opts Options) *Handler {
	return &Handler{
		scheduler:  opts.Scheduler,
		bars:       opts.BarStore,
		results:    opts.ResultStore,
		metrics:    opts.Metrics,
		baseConfig: opts.BaseConfig,
		logger:     opts.Logger,
	}
}

// SubmitRunRequest is the body of POST /api/runs. Bars may be supplied
// inline; when absent they are loaded from the bar store by symbol. A nil
// Config falls back to the server's base configuration.
type SubmitRunRequest struct {
	Symbol  string                   `json:"symbol"`
	Bars    []*domain.Bar            `json:"bars,omitempty"`
	Signals []*domain.SignalRow      `json:"signals"`
	Config  *domain.SimulationConfig `json:"config,omitempty"`
}

// SubmitRun enqueues a simulation job and returns its ID.
func (h *Handler) SubmitRun(c *gin.Context) {
	var req SubmitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	cfg := h.baseConfig
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config: " + err.Error()})
		return
	}
	if _, err := sizing.FromConfig(cfg.Sizing); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sizing: " + err.Error()})
		return
	}

	bars := req.Bars
	if len(bars) == 0 {
		if h.bars == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no bar store configured; supply bars inline"})
			return
		}
		loaded, err := h.bars.GetBySymbol(c.Request.Context(), req.Symbol)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no bars for symbol", "symbol": req.Symbol})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		bars = loaded
	} else {
		for _, b := range bars {
			if b != nil && b.Symbol == "" {
				b.Symbol = req.Symbol
			}
		}
		h.storeBars(c, req.Symbol, bars)
	}

	jobID, err := h.scheduler.Submit(&simulation.Input{
		Symbol:  req.Symbol,
		Bars:    bars,
		Signals: req.Signals,
		Config:  cfg,
	}, nil)
	if err != nil {
		if errors.Is(err, jobs.ErrShuttingDown) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server is shutting down"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

// storeBars keeps inline bars queryable for later by-symbol submissions.
// Best effort: a resubmission of already-stored dates is a no-op and a
// malformed batch is left to the simulation's own validation.
func (h *Handler) storeBars(c *gin.Context, symbol string, bars []*domain.Bar) {
	if h.bars == nil {
		return
	}
	err := h.bars.InsertBars(c.Request.Context(), bars)
	switch {
	case err == nil, errors.Is(err, storage.ErrDuplicateKey):
	default:
		if h.logger != nil {
			h.logger.Printf("persist inline bars symbol=%s: %v", symbol, err)
		}
	}
}

// GetJob returns the current snapshot of one job.
func (h *Handler) GetJob(c *gin.Context) {
	status, err := h.scheduler.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "id": c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListJobs returns all known jobs, newest first.
func (h *Handler) ListJobs(c *gin.Context) {
	statuses := h.scheduler.List()
	c.JSON(http.StatusOK, gin.H{"count": len(statuses), "jobs": statuses})
}

// CancelJob requests cancellation of a pending or running job.
func (h *Handler) CancelJob(c *gin.Context) {
	if err := h.scheduler.Cancel(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found", "id": c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "cancelled": true})
}

// GetRun returns a persisted run result by ID.
func (h *Handler) GetRun(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no result store configured"})
		return
	}
	result, err := h.results.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found", "id": c.Param("id")})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListRuns returns persisted runs for a symbol, or all run IDs when no
// symbol is given.
func (h *Handler) ListRuns(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no result store configured"})
		return
	}

	symbol := c.Query("symbol")
	if symbol == "" {
		ids, err := h.results.ListIDs(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(ids), "run_ids": ids})
		return
	}

	runs, err := h.results.GetBySymbol(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no runs for symbol", "symbol": symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(runs), "runs": runs})
}

// GetReport renders a ranked report over all persisted runs for a symbol.
// ?format=markdown returns the rendered document; the default is JSON.
func (h *Handler) GetReport(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no result store configured"})
		return
	}

	symbol := c.Param("symbol")
	report, err := reporting.NewGenerator(h.results).Generate(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no runs for symbol", "symbol": symbol})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.ReportsGenerated.Inc()
	}

	if c.Query("format") == "markdown" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(report)))
		return
	}
	c.JSON(http.StatusOK, report)
}
