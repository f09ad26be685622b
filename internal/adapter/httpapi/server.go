// Package httpapi exposes the REST dashboard API, the websocket endpoint and
// the operational health, readiness and metrics routes.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coastwatch/hazard-monitor/internal/adapter/postgres"
	"github.com/coastwatch/hazard-monitor/internal/config"
	"github.com/coastwatch/hazard-monitor/internal/realtime"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server wraps the gin engine and the underlying http.Server.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	logger     *slog.Logger
}

// NewServer builds the full route table.
func NewServer(cfg *config.Config, h *Handler, hub *realtime.Hub, ready ReadinessChecker, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		logger: logger,
	}

	engine.GET("/healthz", handleHealth)
	engine.GET("/readyz", handleReady(ready))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/ws", gin.WrapF(hub.ServeWS))

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/dashboard", h.Dashboard)
		v1.GET("/dashboard/stats", h.DashboardStats)
		v1.GET("/dashboard/activity", h.DashboardActivity)

		v1.GET("/incidents", h.ListIncidents)
		v1.POST("/incidents", h.CreateIncident)
		v1.GET("/incidents/:id", h.GetIncident)
		v1.PATCH("/incidents/:id/status", h.UpdateIncidentStatus)

		v1.GET("/reports", h.ListReports)
		v1.POST("/reports", h.CreateReport)
		v1.POST("/reports/:id/verify", h.VerifyReport)

		v1.GET("/social", h.ListSocialPosts)
		v1.POST("/social", h.CreateSocialPost)
		v1.POST("/social/classify", h.ClassifyText)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the gin engine, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// requestLogger logs one line per request at debug, errors at warn.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request failed", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, postgres.ErrNotFound)
}
