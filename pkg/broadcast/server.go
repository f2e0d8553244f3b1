package broadcast

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// ServerOptions configures the real-time transports
type ServerOptions struct {
	MaxListeners int
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	Logger       *zap.Logger
}

// DefaultServerOptions returns the transport defaults
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		MaxListeners: 1000,
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Server accepts WebSocket and SSE subscriptions and registers them with a Registry
type Server struct {
	registry *Registry
	upgrader websocket.Upgrader
	pool     *ants.Pool
	opts     ServerOptions
	logger   *zap.Logger
}

// NewServer creates the transport server. WebSocket write pumps run on a pool
// sized by MaxListeners; connections beyond that are turned away.
func NewServer(registry *Registry, opts ServerOptions) (*Server, error) {
	defaults := DefaultServerOptions()
	if opts.MaxListeners <= 0 {
		opts.MaxListeners = defaults.MaxListeners
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("broadcast")

	pool, err := ants.NewPool(opts.MaxListeners,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("listener writer panicked", zap.Any("panic", p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener pool: %w", err)
	}

	return &Server{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscriptions are public like the rest of the API
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		pool:   pool,
		opts:   opts,
		logger: logger,
	}, nil
}

// Registry returns the registry listeners are added to
func (s *Server) Registry() *Registry {
	return s.registry
}

// Close disconnects every listener and stops the writer pool
func (s *Server) Close() {
	s.registry.Close()
	s.pool.Release()
}
