package telegram

import (
	"log/slog"
	"strconv"
	"sync"

	"whisperchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const sendBuffer = 32

// Sender is the part of the Bot API a client writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client implements chathub.Client for one Telegram chat. Reading is done
// centrally by BotService.
type Client struct {
	ChatID int64
	Name   string
	Send   chan models.ChatMessage
	BotAPI Sender

	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewClient creates a client for chatID. It does not start the write pump.
func NewClient(bot Sender, chatID int64, name string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		ChatID: chatID,
		Name:   name,
		Send:   make(chan models.ChatMessage, sendBuffer),
		BotAPI: bot,
		done:   make(chan struct{}),
		logger: logger.With("component", "tg_client", "chat", chatID),
	}
}

// UserIDFor is the handle a Telegram chat is known by in the hub.
func UserIDFor(chatID int64) models.UserID {
	return models.UserID("tg:" + strconv.FormatInt(chatID, 10))
}

func (c *Client) GetUserID() models.UserID                  { return UserIDFor(c.ChatID) }
func (c *Client) GetName() string                           { return c.Name }
func (c *Client) GetSendChannel() chan<- models.ChatMessage { return c.Send }
func (c *Client) Done() <-chan struct{}                     { return c.done }

// Run starts the write pump.
func (c *Client) Run() {
	go c.writePump()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) writePump() {
	defer c.logger.Debug("write pump stopped")

	for {
		select {
		case msg := <-c.Send:
			if !c.shouldForward(msg) {
				continue
			}
			if _, err := c.BotAPI.Send(tgbotapi.NewMessage(c.ChatID, msg.Content)); err != nil {
				c.logger.Warn("failed to send telegram message", "err", err)
			}
		case <-c.done:
			return
		}
	}
}

// shouldForward drops the public echo of the user's own line; Telegram
// already shows it in the chat.
func (c *Client) shouldForward(msg models.ChatMessage) bool {
	if msg.Content == "" {
		return false
	}
	return msg.Type != models.TypePublic || msg.SenderID != c.GetUserID()
}
