package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/logcollector/pkg/broadcast"
	"github.com/kerlexov/logcollector/pkg/config"
	"github.com/kerlexov/logcollector/pkg/health"
	"github.com/kerlexov/logcollector/pkg/logging"
	"github.com/kerlexov/logcollector/pkg/logservice"
	"github.com/kerlexov/logcollector/pkg/metrics"
	"github.com/kerlexov/logcollector/pkg/security"
	"go.uber.org/zap"
)

// Banner is the plain-text body served at the root path
const Banner = "Log collection backend is operational."

// Dependencies are the collaborators the HTTP surface maps requests onto.
// Broadcast may be nil when real-time subscriptions are disabled.
type Dependencies struct {
	Service   *logservice.Service
	Broadcast *broadcast.Server
	Health    *health.Checker
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Server exposes the log API over HTTP
type Server struct {
	config     *config.Config
	service    *logservice.Service
	broadcast  *broadcast.Server
	health     *health.Checker
	metrics    *metrics.Metrics
	logger     *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the gin engine and registers every route
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("log service is required")
	}
	if deps.Health == nil {
		return nil, errors.New("health checker is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics()
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:    cfg,
		service:   deps.Service,
		broadcast: deps.Broadcast,
		health:    deps.Health,
		metrics:   deps.Metrics,
		logger:    logger.Named("ingestion"),
	}

	router, err := s.buildRouter()
	if err != nil {
		return nil, err
	}
	s.router = router

	return s, nil
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(logging.GinMiddleware(s.logger))
	router.Use(s.recoveryMiddleware())
	router.Use(s.metricsMiddleware())

	if err := security.Apply(router, s.config.Security); err != nil {
		return nil, fmt.Errorf("failed to apply security middleware: %w", err)
	}

	router.Use(s.requestSizeMiddleware())
	s.registerRoutes(router)

	return router, nil
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealthCheck)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	if s.broadcast != nil {
		router.GET("/ws", s.handleWebSocket)
	}

	api := router.Group("/api")
	{
		api.POST("/logs", s.handleSubmit)
		api.GET("/logs", s.handleQuery)
		api.DELETE("/logs", s.handlePurge)

		if s.broadcast != nil {
			api.GET("/logs/stream", s.broadcast.ServeSSE)
		}
	}
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	tlsConfig, err := s.config.TLS.ServerConfig()
	if err != nil {
		return fmt.Errorf("failed to build TLS configuration: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:         s.config.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
		TLSConfig:    tlsConfig,
	}

	// Hijacked and streaming connections are not tracked by Shutdown
	if s.broadcast != nil {
		s.httpServer.RegisterOnShutdown(s.broadcast.Close)
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			zap.String("addr", s.httpServer.Addr),
			zap.Bool("tls", tlsConfig != nil),
		)

		var err error
		if tlsConfig != nil {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	return nil
}
