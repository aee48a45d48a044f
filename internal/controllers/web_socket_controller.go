package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"route_editor/internal/bridge"
	"route_editor/internal/middleware"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // renderer pages are served from any origin
	},
}

// EditorWebSocket connects a map renderer to an edit session. The renderer
// speaks the bridge protocol and must send mapReady before it is drawn to.
func (h *Handler) EditorWebSocket(c *gin.Context) {
	w, ok := h.workflow(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	log := logrus.WithFields(logrus.Fields{
		"session_id": w.ID,
		"actor":      middleware.ActorID(c),
	})
	bridge.NewWebSocketTransport(conn).Serve(w.Bridge, log)
}

// RoutesWebSocket streams the route list, pushing a fresh copy whenever a
// route is saved or deleted.
func (h *Handler) RoutesWebSocket(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Live route feed is disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	log := logrus.WithFields(logrus.Fields{
		"user_id":  middleware.ActorID(c),
		"conn_ptr": fmt.Sprintf("%p", conn),
	})
	if err := h.feed.Register(c.Request.Context(), conn, !middleware.IsAdmin(c)); err != nil {
		log.WithError(err).Warn("Failed to send initial route list.")
		return
	}
	defer h.feed.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Info("Route feed WebSocket closed.")
			} else {
				log.WithError(err).Warn("Error reading route feed WebSocket message.")
			}
			return
		}
		log.Debug("Route feed client sent unexpected message. Ignoring.")
	}
}
