package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/kerlexov/logcollector/pkg/models"
)

// RecordHandler receives each record pushed by the server.
// Returning an error ends the stream with that error.
type RecordHandler func(models.LogRecord) error

func (c *Client) streamURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.JoinPath("/ws").String()
}

// Stream subscribes to newly created records until ctx is cancelled, the
// server disconnects, or handler fails. Only records created after the
// subscription starts are delivered.
func (c *Client) Stream(ctx context.Context, handler RecordHandler) error {
	header := http.Header{}
	header.Set("User-Agent", c.config.UserAgent)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HTTPTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.streamURL(), header)
	if err != nil {
		return ErrNetworkError("failed to open stream", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return ErrNetworkError("stream interrupted", err)
		}

		var envelope models.Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			return ErrServerError("invalid stream message", err)
		}
		if envelope.Type != models.NewLogEventType {
			continue
		}

		if err := handler(envelope.Data); err != nil {
			return err
		}
	}
}
