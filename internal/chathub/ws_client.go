package chathub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"whisperchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	UserID models.UserID
	Name   string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan models.ChatMessage

	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewWebSocketClient wraps an upgraded connection for the given identity.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, who models.Identity, logger *slog.Logger) *WebSocketClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketClient{
		UserID: who.ID,
		Name:   who.Name,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.ChatMessage, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "ws_client", "user", who.ID),
	}
}

func (c *WebSocketClient) GetUserID() models.UserID                  { return c.UserID }
func (c *WebSocketClient) GetName() string                           { return c.Name }
func (c *WebSocketClient) GetSendChannel() chan<- models.ChatMessage { return c.Send }
func (c *WebSocketClient) Done() <-chan struct{}                     { return c.done }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the connection.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("error reading message", "err", err)
			}
			return
		}

		var msg models.ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed frame", "err", err)
			continue
		}
		msg.SenderID = c.UserID

		select {
		case c.Hub.IncomingCh <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(msg); err != nil {
				c.logger.Debug("write failed", "err", err)
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
