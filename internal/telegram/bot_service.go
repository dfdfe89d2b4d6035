// Package telegram connects Telegram chats to the hub. Every private chat with
// the bot is one user; its lines go through the same router as WebSocket
// users.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"whisperchat/backend/internal/chathub"
	"whisperchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	updateTimeout = 60
	// maxNameSuffix bounds the "#n" suffixes tried when a display name is taken.
	maxNameSuffix = 100
)

// Bot is the part of the Bot API the service uses.
type Bot interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// BotService receives Telegram updates and routes them to the hub.
type BotService struct {
	BotAPI Bot
	Hub    *chathub.ManagerService
	logger *slog.Logger
}

// NewBotService authorizes the bot token.
func NewBotService(token string, hub *chathub.ManagerService, logger *slog.Logger) (*BotService, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorizing telegram bot: %w", err)
	}
	bot.Debug = false

	svc := NewBotServiceWithAPI(bot, hub, logger)
	svc.logger.Info("authorized on account", "username", bot.Self.UserName)
	return svc, nil
}

// NewBotServiceWithAPI uses an already constructed bot.
func NewBotServiceWithAPI(bot Bot, hub *chathub.ManagerService, logger *slog.Logger) *BotService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BotService{
		BotAPI: bot,
		Hub:    hub,
		logger: logger.With("component", "telegram"),
	}
}

// Run polls for updates until ctx is cancelled.
func (s *BotService) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout
	updates := s.BotAPI.GetUpdatesChan(u)
	s.logger.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Only private text messages are handled.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat.Type != "private" || msg.Text == "" {
		return
	}

	client, err := s.getOrCreateClient(msg)
	if err != nil {
		s.logger.Warn("failed to register telegram chat", "chat", msg.Chat.ID, "err", err)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			s.Hub.Commands().Execute(client, "dm help")
			return
		case "stop":
			s.Hub.Unregister(client)
			return
		}
		s.forward(ctx, models.ChatMessage{
			SenderID: client.GetUserID(),
			Content:  commandLine(msg),
			Type:     models.TypeCommand,
		})
		return
	}

	s.forward(ctx, models.ChatMessage{
		SenderID: client.GetUserID(),
		Content:  msg.Text,
		Type:     models.TypeChat,
	})
}

func (s *BotService) forward(ctx context.Context, msg models.ChatMessage) {
	select {
	case s.Hub.IncomingCh <- msg:
	case <-ctx.Done():
	}
}

// getOrCreateClient returns the registered client of the chat, registering a
// new one if the chat is not connected. A display name already used by
// another user gets a "#2", "#3", ... suffix.
func (s *BotService) getOrCreateClient(msg *tgbotapi.Message) (*Client, error) {
	id := UserIDFor(msg.Chat.ID)
	if existing, ok := s.Hub.Resolve(id); ok {
		if c, ok := existing.(*Client); ok && s.Hub.IsReachable(c) {
			return c, nil
		}
	}

	base := displayName(msg)
	for n := 1; n <= maxNameSuffix; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s#%d", base, n)
		}
		c := NewClient(s.BotAPI, msg.Chat.ID, name, s.logger)
		err := s.Hub.Register(c)
		if errors.Is(err, chathub.ErrNameTaken) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c.Run()
		return c, nil
	}
	return nil, fmt.Errorf("no free display name for %q: %w", base, chathub.ErrNameTaken)
}

// commandLine rebuilds the line without a "@botname" suffix on the command.
func commandLine(msg *tgbotapi.Message) string {
	line := "/" + msg.Command()
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		line += " " + args
	}
	return line
}

func displayName(msg *tgbotapi.Message) string {
	if from := msg.From; from != nil {
		if from.UserName != "" {
			return from.UserName
		}
		if from.FirstName != "" {
			return from.FirstName
		}
	}
	if msg.Chat.UserName != "" {
		return msg.Chat.UserName
	}
	return fmt.Sprintf("tg%d", msg.Chat.ID)
}
