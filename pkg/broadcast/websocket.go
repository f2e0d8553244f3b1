package broadcast

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

const maxInboundMessageSize = 64 * 1024

// WebSocketListener delivers queued payloads over a WebSocket connection
type WebSocketListener struct {
	*outboundQueue

	conn         *websocket.Conn
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
}

func newWebSocketListener(conn *websocket.Conn, opts ServerOptions, logger *zap.Logger) *WebSocketListener {
	return &WebSocketListener{
		outboundQueue: newOutboundQueue(opts.SendBuffer),
		conn:          conn,
		writeTimeout:  opts.WriteTimeout,
		pingInterval:  opts.PingInterval,
		logger:        logger,
	}
}

// Close sends a normal close frame and releases the connection
func (l *WebSocketListener) Close() error {
	if !l.shutdown() {
		return nil
	}

	deadline := time.Now().Add(l.writeTimeout)
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return l.conn.Close()
}

// writePump drains the queue to the socket and keeps the connection alive with pings
func (l *WebSocketListener) writePump() {
	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()
	defer l.Close()

	for {
		select {
		case payload := <-l.messages:
			l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
			if err := l.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				l.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(l.writeTimeout)); err != nil {
				l.logger.Debug("websocket ping failed", zap.Error(err))
				return
			}
		case <-l.done:
			return
		}
	}
}

// readPump consumes inbound frames until the peer goes away.
// Clients have nothing to say; their messages are only logged.
func (l *WebSocketListener) readPump() {
	defer l.Close()

	pongWait := 2 * l.pingInterval
	l.conn.SetReadLimit(maxInboundMessageSize)
	l.conn.SetReadDeadline(time.Now().Add(pongWait))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				l.logger.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		l.logger.Debug("received listener message", zap.ByteString("message", message))
	}
}

// IsWebSocketUpgrade reports whether r asks for a WebSocket handshake
func IsWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// ServeWebSocket upgrades the request and keeps the listener registered until the peer disconnects
func (s *Server) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	listener := newWebSocketListener(conn, s.opts, s.logger)

	if err := s.pool.Submit(listener.writePump); err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			s.logger.Warn("listener limit reached, rejecting websocket", zap.Int("max_listeners", s.opts.MaxListeners))
		} else {
			s.logger.Error("failed to start websocket writer", zap.Error(err))
		}
		s.rejectConnection(conn)
		return
	}

	handle := s.registry.Subscribe(listener)
	defer s.registry.Unsubscribe(handle)

	listener.readPump()
}

func (s *Server) rejectConnection(conn *websocket.Conn) {
	deadline := time.Now().Add(s.opts.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many listeners, try again later"), deadline)
	conn.Close()
}
