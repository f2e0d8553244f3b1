package broadcast

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/logcollector/pkg/models"
	"go.uber.org/zap"
)

// SSEListener queues payloads for a Server-Sent Events stream.
// The request goroutine drains it; see Server.ServeSSE.
type SSEListener struct {
	*outboundQueue
}

// NewSSEListener creates a listener with room for bufferSize pending payloads
func NewSSEListener(bufferSize int) *SSEListener {
	return &SSEListener{outboundQueue: newOutboundQueue(bufferSize)}
}

// Messages returns the queued payloads in send order
func (l *SSEListener) Messages() <-chan []byte {
	return l.messages
}

// Done is closed once the listener is closed
func (l *SSEListener) Done() <-chan struct{} {
	return l.done
}

// Close stops the stream
func (l *SSEListener) Close() error {
	l.shutdown()
	return nil
}

// ServeSSE streams NEW_LOG events to the client until it disconnects
func (s *Server) ServeSSE(c *gin.Context) {
	listener := NewSSEListener(s.opts.SendBuffer)
	handle := s.registry.Subscribe(listener)
	defer func() {
		s.registry.Unsubscribe(handle)
		listener.Close()
	}()

	// The stream outlives the server's write timeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("could not clear write deadline for event stream", zap.Error(err))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepAlive := time.NewTicker(s.opts.PingInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case payload := <-listener.Messages():
			c.SSEvent(models.NewLogEventType, string(payload))
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case <-listener.Done():
			return false
		case <-ctx.Done():
			return false
		}
	})
}
