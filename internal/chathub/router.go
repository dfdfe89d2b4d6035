package chathub

import (
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"whisperchat/backend/internal/localization"
	"whisperchat/backend/internal/models"
)

// Auditor receives every private message that reached at least one recipient.
// Implementations must not block and must swallow their own failures.
type Auditor interface {
	Record(rec models.AuditRecord)
}

type nopAuditor struct{}

func (nopAuditor) Record(models.AuditRecord) {}

// Outcome tells the caller what to do with a chat line after routing.
type Outcome struct {
	// Public is true when the line goes to public chat.
	Public bool
	// Text is the line to broadcast publicly; the escape prefix is already stripped.
	Text string
}

// Router decides where a plain chat line goes based on the sender's focused
// conversation, and delivers whispers and replies.
type Router struct {
	store    *ConversationStore
	groups   *GroupRegistry
	presence Presence
	texts    *localization.Localizer
	audit    Auditor
	prefix   string
	clock    Clock
	logger   *slog.Logger
}

// NewRouter wires a router. audit may be nil to disable auditing.
func NewRouter(store *ConversationStore, groups *GroupRegistry, presence Presence, texts *localization.Localizer, prefix string, audit Auditor, logger *slog.Logger) *Router {
	if audit == nil {
		audit = nopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		store:    store,
		groups:   groups,
		presence: presence,
		texts:    texts,
		audit:    audit,
		prefix:   prefix,
		clock:    store.clock,
		logger:   logger.With("component", "router"),
	}
}

// Route handles a plain chat line from sender.
func (r *Router) Route(sender Client, text string) Outcome {
	id := sender.GetUserID()
	conv := r.store.Active(id)

	switch conv.Kind() {
	case models.DirectConversation:
		if public, ok := r.Escape(text); ok {
			return Outcome{Public: true, Text: public}
		}
		target, _ := conv.Target()
		if err := r.sendDirect(sender, target, models.TypeDM, text); err != nil {
			r.logger.Debug("direct delivery failed", "sender", id, "target", target, "err", err)
			r.store.DropDirect(id, target)
			r.notify(sender, MessageKey(err))
		}
		return Outcome{}

	case models.GroupConversation:
		name, _ := conv.Group()
		group, ok := r.groups.Group(name)
		if !ok || !group.HasMember(id) {
			r.logger.Debug("focused group is gone", "sender", id, "group", name)
			r.store.ClearGroupFocus(id, name)
			r.notify(sender, "group-gone", "group", name)
			return Outcome{Public: true, Text: text}
		}
		if public, ok := r.Escape(text); ok {
			return Outcome{Public: true, Text: public}
		}
		r.broadcastGroup(sender, group, text)
		return Outcome{}

	default:
		return Outcome{Public: true, Text: text}
	}
}

// Whisper sends a one-off private message without touching the sender's focus.
func (r *Router) Whisper(sender Client, target models.UserID, text string) error {
	if sender.GetUserID() == target {
		return ErrSelfTarget
	}
	return r.sendDirect(sender, target, models.TypeWhisper, text)
}

// Reply answers whoever last sent sender a direct message. An unreachable
// reply target is forgotten.
func (r *Router) Reply(sender Client, text string) error {
	id := sender.GetUserID()
	target, err := r.store.ResolveReply(id)
	if err != nil {
		return err
	}
	if err := r.sendDirect(sender, target, models.TypeReply, text); err != nil {
		r.store.ForgetReplyTarget(id, target)
		return err
	}
	return nil
}

// Escape applies the public prefix rule: the prefix immediately followed by a
// non-whitespace character sends the rest of the line to public chat.
func (r *Router) Escape(text string) (string, bool) {
	if r.prefix == "" || !strings.HasPrefix(text, r.prefix) || len(text) == len(r.prefix) {
		return "", false
	}
	rest := text[len(r.prefix):]
	if next, _ := utf8.DecodeRuneInString(rest); unicode.IsSpace(next) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func (r *Router) sendDirect(sender Client, targetID models.UserID, kind, text string) error {
	target, ok := r.presence.Resolve(targetID)
	if !ok || !r.presence.IsReachable(target) {
		return ErrTargetUnreachable
	}

	line := r.texts.Format(kind,
		"type", strings.ToUpper(kind),
		"sender", sender.GetName(),
		"receiver", target.GetName(),
		"message", text,
	)
	msg := models.ChatMessage{SenderID: sender.GetUserID(), Content: line, Type: kind}
	if !Deliver(target, msg) {
		return ErrTargetUnreachable
	}
	Deliver(sender, msg)

	r.store.RecordDelivery(sender.GetUserID(), targetID)
	r.audit.Record(models.AuditRecord{
		Kind:       kind,
		SenderID:   string(sender.GetUserID()),
		SenderName: sender.GetName(),
		Recipients: []string{target.GetName()},
		Content:    text,
		SentAt:     r.clock.Now(),
	})
	r.logger.Debug("delivered private message", "kind", kind, "sender", sender.GetUserID(), "target", targetID)
	return nil
}

func (r *Router) broadcastGroup(sender Client, group models.Group, text string) {
	id := sender.GetUserID()
	line := r.texts.Format(models.TypeGroup,
		"type", strings.ToUpper(models.TypeGroup),
		"group", group.Name,
		"sender", sender.GetName(),
		"message", text,
	)
	msg := models.ChatMessage{SenderID: id, Content: line, Type: models.TypeGroup}

	var recipients []string
	for _, member := range group.Members {
		if member == id {
			continue
		}
		c, ok := r.presence.Resolve(member)
		if !ok || !r.presence.IsReachable(c) {
			continue
		}
		if Deliver(c, msg) {
			recipients = append(recipients, c.GetName())
		}
	}
	Deliver(sender, msg)

	if len(recipients) > 0 {
		r.audit.Record(models.AuditRecord{
			Kind:       models.TypeGroup,
			SenderID:   string(id),
			SenderName: sender.GetName(),
			Recipients: recipients,
			Group:      group.Name,
			Content:    text,
			SentAt:     r.clock.Now(),
		})
	}
	r.logger.Debug("group broadcast", "group", group.Name, "sender", id, "delivered", len(recipients))
}

func (r *Router) notify(c Client, key string, pairs ...string) {
	sendNotice(c, r.texts.Message(key, pairs...))
}

func sendNotice(c Client, text string) bool {
	return Deliver(c, models.ChatMessage{Content: text, Type: models.TypeSystem})
}
