// Package http provides HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hotelops/requisition-approval/internal/application/service"
	"github.com/hotelops/requisition-approval/internal/metrics"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		Mode:         gin.ReleaseMode,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services are the application services the HTTP API exposes
type Services struct {
	Requisitions service.RequisitionService
	Approvals    service.ApprovalService
	Exports      service.ExportService
}

// HealthFunc reports overall health and a per-component breakdown
type HealthFunc func() (healthy bool, details interface{})

// ServerOption configures optional server collaborators
type ServerOption func(*Server)

// WithMetrics records request metrics and serves them on /metrics
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithHealth sets the component check behind /health
func WithHealth(fn HealthFunc) ServerOption {
	return func(s *Server) {
		s.health = fn
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	metrics    *metrics.Metrics
	health     HealthFunc
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, logger Logger, opts ...ServerOption) *Server {
	mode := config.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		services: services,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	if s.metrics != nil {
		s.router.Use(metricsMiddleware(s.metrics))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.services, s.health, s.logger)

	s.router.GET("/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := s.router.Group("/api", userMiddleware())
	{
		reqs := api.Group("/requisitions")
		reqs.POST("", handlers.CreateRequisition)
		reqs.GET("", handlers.ListRequisitions)
		reqs.GET("/:id", handlers.GetRequisition)
		reqs.POST("/:id/submit", handlers.SubmitRequisition)
		reqs.PUT("/:id/items/:itemId/status", handlers.ReviewItem)
		reqs.GET("/:id/actions", handlers.GetActions)
		reqs.POST("/:id/decision", handlers.Decide)
		reqs.POST("/:id/issue", handlers.IssueRequisition)
		reqs.GET("/:id/aggregates", handlers.GetAggregates)
		reqs.GET("/:id/export", handlers.ExportRequisition)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
