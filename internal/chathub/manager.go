package chathub

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"whisperchat/backend/internal/localization"
	"whisperchat/backend/internal/models"
)

// HubOptions carries the collaborators of a ManagerService.
type HubOptions struct {
	Store        *ConversationStore
	Groups       *GroupRegistry
	Texts        *localization.Localizer
	PublicPrefix string
	Audit        Auditor
	Logger       *slog.Logger
}

// ManagerService is the hub: the directory of connected clients and the
// entry point for every inbound frame.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[models.UserID]Client

	IncomingCh chan models.ChatMessage

	store    *ConversationStore
	groups   *GroupRegistry
	texts    *localization.Localizer
	router   *Router
	commands *CommandService
	logger   *slog.Logger
}

// NewManagerService wires the router and command layer around the stores and
// installs the group disband notifier.
func NewManagerService(opts HubOptions) *ManagerService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	texts := opts.Texts
	if texts == nil {
		texts = localization.NewLocalizer(nil, nil, nil)
	}

	m := &ManagerService{
		clients:    make(map[models.UserID]Client),
		IncomingCh: make(chan models.ChatMessage, 64),
		store:      opts.Store,
		groups:     opts.Groups,
		texts:      texts,
		logger:     logger.With("component", "hub"),
	}
	m.router = NewRouter(opts.Store, opts.Groups, m, texts, opts.PublicPrefix, opts.Audit, logger)
	m.commands = NewCommandService(opts.Store, opts.Groups, m.router, m, texts, logger)
	opts.Groups.OnDisband(m.notifyDisband)
	return m
}

func (m *ManagerService) Router() *Router { return m.router }

func (m *ManagerService) Commands() *CommandService { return m.commands }

// Run processes inbound frames until ctx is cancelled. Every client still
// connected at that point is closed.
func (m *ManagerService) Run(ctx context.Context) {
	m.logger.Info("hub started")
	defer m.closeAll()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("hub stopping")
			return
		case msg := <-m.IncomingCh:
			m.HandleInbound(msg)
		}
	}
}

// Register adds c to the directory. A previous connection of the same user
// is replaced and closed. Display names are unique among connected users,
// ignoring case: ErrNameTaken is returned when another user holds c's name.
func (m *ManagerService) Register(c Client) error {
	id := c.GetUserID()

	m.mu.Lock()
	for otherID, other := range m.clients {
		if otherID != id && strings.EqualFold(other.GetName(), c.GetName()) {
			m.mu.Unlock()
			return ErrNameTaken
		}
	}
	old, replaced := m.clients[id]
	m.clients[id] = c
	m.mu.Unlock()

	if replaced && old != c {
		m.logger.Info("replacing existing connection", "user", id)
		old.Close()
	}
	m.logger.Info("client registered", "user", id, "name", c.GetName())
	return nil
}

// Unregister removes c and purges the user from every conversation index and
// from its group. A stale client that was already replaced is only closed.
func (m *ManagerService) Unregister(c Client) {
	id := c.GetUserID()

	m.mu.Lock()
	current, ok := m.clients[id]
	if ok && current == c {
		delete(m.clients, id)
	}
	m.mu.Unlock()

	c.Close()
	if !ok || current != c {
		return
	}

	m.store.RemoveUser(id)
	if g, err := m.groups.LeaveGroup(id); err == nil {
		m.logger.Debug("left group on disconnect", "user", id, "group", g.Name)
	} else if !errors.Is(err, ErrNotInGroup) {
		m.logger.Warn("failed to leave group on disconnect", "user", id, "err", err)
	}
	m.logger.Info("client unregistered", "user", id)
}

// Resolve returns the connected client for id.
func (m *ManagerService) Resolve(id models.UserID) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok
}

// ResolveByName finds a connected client by display name, ignoring case.
func (m *ManagerService) ResolveByName(name string) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.clients {
		if strings.EqualFold(c.GetName(), name) {
			return c, true
		}
	}
	return nil, false
}

// IsReachable reports whether c is the registered connection of its user and
// has not been closed.
func (m *ManagerService) IsReachable(c Client) bool {
	if c == nil {
		return false
	}
	m.mu.RLock()
	current, ok := m.clients[c.GetUserID()]
	m.mu.RUnlock()
	if !ok || current != c {
		return false
	}
	select {
	case <-c.Done():
		return false
	default:
		return true
	}
}

// OnlineNames lists the display names of connected users, sorted.
func (m *ManagerService) OnlineNames() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.clients))
	for _, c := range m.clients {
		names = append(names, c.GetName())
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names
}

// ClientCount returns the number of connected clients.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// HandleInbound dispatches a frame from a connected user: commands to the
// command layer, suggestion requests answered inline, everything else through
// the router and, if it stays public, to every connected client. Blank lines
// are dropped.
func (m *ManagerService) HandleInbound(msg models.ChatMessage) {
	sender, ok := m.Resolve(msg.SenderID)
	if !ok {
		m.logger.Warn("dropping frame from unknown sender", "user", msg.SenderID)
		return
	}

	if strings.TrimSpace(msg.Content) == "" && msg.Type != models.TypeSuggest {
		return
	}

	switch {
	case msg.Type == models.TypeSuggest:
		Deliver(sender, models.ChatMessage{
			Type:    models.TypeSuggest,
			Content: strings.Join(m.commands.Suggest(sender, msg.Content), "\n"),
		})
	case msg.Type == models.TypeCommand || IsCommand(msg.Content):
		m.commands.Execute(sender, msg.Content)
	default:
		if out := m.router.Route(sender, msg.Content); out.Public {
			m.BroadcastPublic(sender, out.Text)
		}
	}
}

// BroadcastPublic sends a public chat line to every connected client.
func (m *ManagerService) BroadcastPublic(sender Client, text string) {
	line := m.texts.Format(models.TypePublic,
		"type", strings.ToUpper(models.TypePublic),
		"sender", sender.GetName(),
		"message", text,
	)
	msg := models.ChatMessage{SenderID: sender.GetUserID(), Content: line, Type: models.TypePublic}

	m.mu.RLock()
	targets := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		targets = append(targets, c)
	}
	m.mu.RUnlock()

	for _, c := range targets {
		if !Deliver(c, msg) {
			m.logger.Warn("dropping public message for slow client", "user", c.GetUserID())
		}
	}
}

func (m *ManagerService) notifyDisband(g models.Group, reason models.DisbandReason) {
	reasonText := m.texts.Message("group-reason-expired")
	if reason == models.DisbandDeleted {
		owner := unknownName
		if c, ok := m.Resolve(g.Owner); ok {
			owner = c.GetName()
		}
		reasonText = m.texts.Message("group-reason-deleted", "owner", owner)
	}
	notice := m.texts.Message("group-disbanded", "group", g.Name, "reason", reasonText)

	for _, member := range g.Members {
		if c, ok := m.Resolve(member); ok && m.IsReachable(c) {
			sendNotice(c, notice)
		}
	}
	m.logger.Info("group disbanded", "group", g.Name, "reason", reason, "members", len(g.Members))
}

func (m *ManagerService) closeAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[models.UserID]Client)
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
