package chathub

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode"

	"whisperchat/backend/internal/localization"
	"whisperchat/backend/internal/models"

	"github.com/samber/lo"
)

// Directory is Presence plus lookups by display name.
type Directory interface {
	Presence
	ResolveByName(name string) (Client, bool)
	OnlineNames() []string
}

// CommandService executes the text commands users type: dm, w/msg/tell, r.
// Every outcome is reported back to the sender as a templated notice.
type CommandService struct {
	store  *ConversationStore
	groups *GroupRegistry
	router *Router
	dir    Directory
	texts  *localization.Localizer
	logger *slog.Logger
}

func NewCommandService(store *ConversationStore, groups *GroupRegistry, router *Router, dir Directory, texts *localization.Localizer, logger *slog.Logger) *CommandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandService{
		store:  store,
		groups: groups,
		router: router,
		dir:    dir,
		texts:  texts,
		logger: logger.With("component", "commands"),
	}
}

// IsCommand reports whether a chat line is a command rather than chat.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Execute runs one command line for sender. A leading slash is optional.
func (s *CommandService) Execute(sender Client, line string) {
	line = strings.TrimPrefix(strings.TrimSpace(line), "/")
	name, rest := cutWord(line)
	s.logger.Debug("executing command", "user", sender.GetUserID(), "command", name)

	switch strings.ToLower(name) {
	case "dm":
		s.dm(sender, rest)
	case "w", "msg", "tell":
		s.whisper(sender, rest)
	case "r":
		s.reply(sender, rest)
	default:
		s.notify(sender, "unknown-command")
	}
}

func (s *CommandService) dm(sender Client, args string) {
	sub, rest := cutWord(args)
	target, _ := cutWord(rest)

	switch strings.ToLower(sub) {
	case "start":
		s.dmStart(sender, target)
	case "switch":
		s.dmSwitch(sender, target)
	case "list":
		s.dmList(sender)
	case "leave":
		s.dmLeave(sender)
	case "help":
		for _, line := range s.texts.Help() {
			sendNotice(sender, line)
		}
	case "group":
		s.group(sender, rest)
	default:
		s.notify(sender, "unknown-command")
	}
}

func (s *CommandService) dmStart(sender Client, name string) {
	if name == "" {
		s.notify(sender, "usage", "usage", "/dm start <player>")
		return
	}
	target, ok := s.dir.ResolveByName(name)
	if !ok {
		s.notify(sender, "target-offline")
		return
	}
	if err := s.store.StartDirect(sender.GetUserID(), target.GetUserID()); err != nil {
		s.notify(sender, MessageKey(err))
		return
	}
	s.notify(sender, "dm-start", "target", target.GetName())
}

func (s *CommandService) dmSwitch(sender Client, name string) {
	if name == "" {
		s.notify(sender, "usage", "usage", "/dm switch <player>")
		return
	}
	id := sender.GetUserID()
	if len(s.store.ListDirect(id)) == 0 {
		s.notify(sender, "no-dm-sessions")
		return
	}
	target, ok := s.dir.ResolveByName(name)
	if !ok {
		s.notify(sender, "target-offline")
		return
	}
	if err := s.store.SwitchDirect(id, target.GetUserID()); err != nil {
		s.notify(sender, MessageKey(err))
		return
	}
	s.notify(sender, "dm-switch", "target", target.GetName())
}

func (s *CommandService) dmList(sender Client) {
	partners := s.store.ListDirect(sender.GetUserID())
	if len(partners) == 0 {
		s.notify(sender, "no-dm-sessions")
		return
	}

	online := lo.FilterMap(partners, func(id models.UserID, _ int) (string, bool) {
		c, ok := s.dir.Resolve(id)
		if !ok || !s.dir.IsReachable(c) {
			return "", false
		}
		return c.GetName(), true
	})
	if len(online) == 0 {
		s.notify(sender, "no-active-dms")
		return
	}

	s.notify(sender, "dm-list-header")
	for _, name := range online {
		s.notify(sender, "dm-list-item", "target", name)
	}
}

func (s *CommandService) dmLeave(sender Client) {
	id := sender.GetUserID()
	switch s.store.Active(id).Kind() {
	case models.GroupConversation:
		s.notify(sender, "cannot-leave-group-with-dm")
		return
	case models.NoConversation:
		s.notify(sender, "not-in-dm")
		return
	}

	target, err := s.store.LeaveDirect(id)
	if err != nil {
		s.notify(sender, MessageKey(err))
		return
	}
	s.notify(sender, "dm-left", "target", s.nameOf(target, unknownName))
}

func (s *CommandService) whisper(sender Client, args string) {
	name, text := cutWord(args)
	if name == "" || text == "" {
		s.notify(sender, "usage", "usage", "/w <player> <message>")
		return
	}
	target, ok := s.dir.ResolveByName(name)
	if !ok {
		s.notify(sender, "target-offline")
		return
	}
	if err := s.router.Whisper(sender, target.GetUserID(), text); err != nil {
		s.notify(sender, MessageKey(err))
	}
}

func (s *CommandService) reply(sender Client, text string) {
	if text == "" {
		s.notify(sender, "usage", "usage", "/r <message>")
		return
	}
	if err := s.router.Reply(sender, text); err != nil {
		s.notify(sender, MessageKey(err))
	}
}

func (s *CommandService) group(sender Client, args string) {
	sub, rest := cutWord(args)
	name, _ := cutWord(rest)
	id := sender.GetUserID()

	switch strings.ToLower(sub) {
	case "create":
		g, err := s.groups.CreateGroup(id)
		if err != nil {
			s.logger.Debug("group create rejected", "user", id, "err", err)
			s.notify(sender, "cannot-create-group")
			return
		}
		s.notify(sender, "group-created", "group", g.Name, "lifetime", formatLifetime(s.groups.Lifetime()))

	case "leave":
		g, err := s.groups.LeaveGroup(id)
		if err != nil {
			s.notify(sender, "not-in-group")
			return
		}
		s.store.ClearGroupFocus(id, g.Name)
		s.notify(sender, "group-left", "group", g.Name)

	case "delete":
		if name == "" {
			s.notify(sender, "usage", "usage", "/dm group delete <name>")
			return
		}
		if err := s.groups.DeleteGroup(name, id); err != nil {
			s.logger.Debug("group delete rejected", "user", id, "group", name, "err", err)
			s.notify(sender, "cannot-delete-group")
			return
		}
		s.notify(sender, "group-deleted", "group", name)

	case "join":
		if name == "" {
			s.notify(sender, "usage", "usage", "/dm group join <name>")
			return
		}
		if _, err := s.groups.JoinGroup(id, name); err != nil {
			s.logger.Debug("group join rejected", "user", id, "group", name, "err", err)
			s.notify(sender, "cannot-join-group")
			return
		}
		s.store.FocusGroup(id, name)
		s.notify(sender, "group-joined", "group", name)

	case "switch":
		if current, ok := s.groups.GroupOf(id); !ok || current != name {
			s.notify(sender, "not-in-group")
			return
		}
		s.store.FocusGroup(id, name)
		s.notify(sender, "group-dm-switched", "group", name)

	case "list-current":
		s.groupListCurrent(sender)

	default:
		s.notify(sender, "unknown-command")
	}
}

func (s *CommandService) groupListCurrent(sender Client) {
	current, ok := s.groups.GroupOf(sender.GetUserID())
	if !ok {
		s.notify(sender, "not-in-group")
		return
	}
	g, ok := s.groups.Group(current)
	if !ok {
		s.notify(sender, "not-in-group")
		return
	}

	s.notify(sender, "group-members", "group", g.Name)
	s.notify(sender, "group-owner", "owner", s.nameOf(g.Owner, "Offline"))

	members := lo.FilterMap(g.Members, func(id models.UserID, _ int) (string, bool) {
		if id == g.Owner {
			return "", false
		}
		c, ok := s.dir.Resolve(id)
		if !ok {
			return "", false
		}
		return c.GetName(), true
	})
	if len(members) == 0 {
		s.notify(sender, "group-no-members")
		return
	}
	s.notify(sender, "group-members-list")
	for _, m := range members {
		s.notify(sender, "group-member", "member", m)
	}
}

// Suggest returns completions for the last argument of a partially typed
// command line.
func (s *CommandService) Suggest(sender Client, line string) []string {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return nil
	}

	var candidates []string
	prefix := ""
	if !strings.HasSuffix(line, " ") {
		prefix = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	}
	path := strings.ToLower(strings.Join(fields, " "))

	switch path {
	case "dm":
		candidates = []string{"start", "switch", "list", "leave", "help", "group"}
	case "dm group":
		candidates = []string{"create", "leave", "delete", "join", "switch", "list-current"}
	case "dm group delete":
		candidates = s.groups.GroupNamesOwnedBy(sender.GetUserID())
	case "dm group join", "dm group switch":
		candidates = s.groups.GroupNames()
	case "dm start", "w", "msg", "tell":
		candidates = lo.Without(s.dir.OnlineNames(), sender.GetName())
	case "dm switch":
		candidates = lo.FilterMap(s.store.ListDirect(sender.GetUserID()), func(id models.UserID, _ int) (string, bool) {
			c, ok := s.dir.Resolve(id)
			if !ok {
				return "", false
			}
			return c.GetName(), true
		})
	}

	out := lo.Filter(candidates, func(c string, _ int) bool {
		return strings.HasPrefix(strings.ToLower(c), strings.ToLower(prefix))
	})
	slices.Sort(out)
	return out
}

func (s *CommandService) nameOf(id models.UserID, fallback string) string {
	if c, ok := s.dir.Resolve(id); ok {
		return c.GetName()
	}
	return fallback
}

func (s *CommandService) notify(c Client, key string, pairs ...string) {
	sendNotice(c, s.texts.Message(key, pairs...))
}

// cutWord splits off the first whitespace separated word. rest keeps its
// inner spacing but is trimmed at both ends.
func cutWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func formatLifetime(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d == time.Minute:
		return "1 minute"
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
