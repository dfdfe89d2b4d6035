package models

// ConversationKind tells which variant a Conversation holds.
type ConversationKind uint8

const (
	NoConversation ConversationKind = iota
	DirectConversation
	GroupConversation
)

func (k ConversationKind) String() string {
	switch k {
	case DirectConversation:
		return "direct"
	case GroupConversation:
		return "group"
	default:
		return "none"
	}
}

// Conversation is the target a user's plain chat lines are routed to.
// It holds either a direct target, a group name, or nothing; the fields are
// unexported so both can never be set at once.
type Conversation struct {
	kind   ConversationKind
	target UserID
	group  string
}

// Direct returns a conversation focused on a single user.
func Direct(target UserID) Conversation {
	return Conversation{kind: DirectConversation, target: target}
}

// InGroup returns a conversation focused on the named group.
func InGroup(name string) Conversation {
	return Conversation{kind: GroupConversation, group: name}
}

func (c Conversation) Kind() ConversationKind { return c.kind }

// Target returns the direct target, if this is a direct conversation.
func (c Conversation) Target() (UserID, bool) {
	return c.target, c.kind == DirectConversation
}

// Group returns the group name, if this is a group conversation.
func (c Conversation) Group() (string, bool) {
	return c.group, c.kind == GroupConversation
}

// IsDirectWith reports whether c is a direct conversation with target.
func (c Conversation) IsDirectWith(target UserID) bool {
	return c.kind == DirectConversation && c.target == target
}
