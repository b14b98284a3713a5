package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const closeTimeout = time.Second

// WebSocketSource reads notifications from a WebSocket endpoint. Every text
// frame is one JSON message.
type WebSocketSource struct {
	URL    string
	Header http.Header
	Dialer *websocket.Dialer
}

// NewWebSocketSource creates a source for a ws:// or wss:// URL.
func NewWebSocketSource(url string) *WebSocketSource {
	return &WebSocketSource{URL: url, Dialer: websocket.DefaultDialer}
}

// Subscribe dials the endpoint and forwards text frames until ctx is done or
// the connection closes.
func (s *WebSocketSource) Subscribe(ctx context.Context, deliver func(raw []byte)) error {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, s.URL, s.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	// ReadMessage does not take a context; closing the connection unblocks it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeTimeout))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read %s: %w", s.URL, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		deliver(data)
	}
}
