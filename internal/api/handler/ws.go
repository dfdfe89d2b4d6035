package handler

import (
	"errors"
	"net/http"

	"whisperchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWebSocket authenticates the token and upgrades the connection to a
// hub client.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
		return
	}

	who, err := ParseToken(h.secret, tokenString)
	if err != nil {
		h.logger.Debug("rejected token", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	// The name is reserved before the upgrade so a conflict can still be
	// answered with a status code.
	client := chathub.NewWebSocketClient(h.Hub, nil, who, h.logger)
	if err := h.Hub.Register(client); err != nil {
		if errors.Is(err, chathub.ErrNameTaken) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "name is already in use"})
			return
		}
		h.logger.Error("failed to register client", "user", who.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to register client"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "user", who.ID, "err", err)
		h.Hub.Unregister(client)
		return
	}

	client.Conn = conn
	client.Run()
}
