// Package server exposes the daemon-mode HTTP surface: health,
// metrics, scheduler status, and a manual run trigger. It is not
// started in one-shot mode.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inbox2itsm/internal/metrics"
	"inbox2itsm/internal/scheduler"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
}

// NewHandlers creates the handler set
func NewHandlers(sched *scheduler.Scheduler, m *metrics.Metrics) *Handlers {
	return &Handlers{scheduler: sched, metrics: m}
}

// NewRouter builds the gin router
func NewRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware())

	router.GET("/healthz", h.Health)
	router.GET("/status", h.Status)
	router.POST("/run", h.Run)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{})))

	return router
}

// Health reports process liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}

// Status reports scheduler state and the last run report
func (h *Handlers) Status(c *gin.Context) {
	lastRun, report := h.scheduler.LastReport()

	c.JSON(http.StatusOK, gin.H{
		"running":  h.scheduler.IsRunning(),
		"next_run": h.scheduler.GetNextRun(),
		"last_run": lastRun,
		"report":   report,
	})
}

// Run triggers one pipeline run. Returns 409 when a run is already
// in flight.
func (h *Handlers) Run(c *gin.Context) {
	if err := h.scheduler.RunOnce(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	lastRun, report := h.scheduler.LastReport()
	c.JSON(http.StatusOK, gin.H{
		"last_run": lastRun,
		"report":   report,
	})
}

// loggerMiddleware adds request logging
func loggerMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	})
}
