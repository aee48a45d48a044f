package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// WebSocketTransport carries bridge messages over a renderer websocket.
type WebSocketTransport struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketTransport wraps an upgraded renderer connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	conn.SetReadLimit(maxMessageSize)
	return &WebSocketTransport{conn: conn}
}

// Send writes one text frame.
func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "edit session closed")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return t.conn.Close()
}

// Serve attaches the transport to b and feeds renderer frames into it until
// the connection closes. The transport is detached on return.
func (t *WebSocketTransport) Serve(b *Bridge, log *logrus.Entry) {
	log = log.WithField("conn_ptr", fmt.Sprintf("%p", t.conn))
	if err := b.Attach(t); err != nil {
		log.WithError(err).Warn("Renderer refused by map bridge.")
		return
	}
	defer b.Detach(t)
	log.Info("Renderer connected to map bridge.")

	for {
		messageType, p, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("Renderer websocket closed.")
			} else {
				log.WithError(err).Warn("Error reading renderer websocket message.")
			}
			return
		}
		if messageType != websocket.TextMessage {
			log.WithField("message_type", messageType).Warn("Renderer sent a non-text frame. Ignoring.")
			continue
		}
		b.Receive(p)
	}
}
