package handler

import (
	"errors"
	"net/http"

	"teamgrid/backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the edge proxy in this deployment.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the caller, upgrades the connection and
// registers it with the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity, err := h.identify(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
		return
	}

	client := realtime.NewWebSocketClient(h.Hub, conn, identity.UserID, identity.TenantID)
	if err := h.Hub.Registry.Register(client); err != nil {
		if errors.Is(err, realtime.ErrDuplicateSession) {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "duplicate session"))
		}
		conn.Close()
		return
	}

	client.Run()
}
